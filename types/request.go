package types

// RequestType is the one-byte tag that prefixes every request frame
type RequestType uint8

// Request is a framed request read from a client connection
type Request struct {
	Type              RequestType
	Length            uint32
	ConnectionAddress string
	Body              []byte
}
