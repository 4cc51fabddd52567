package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/CefBoud/kafkanet/serde"
	"github.com/CefBoud/kafkanet/types"
)

// RequestHeaderSize is the type tag plus the payload length
const RequestHeaderSize = 5

// ResponseHeaderSize is the payload length
const ResponseHeaderSize = 4

func checkLength(length int32, maxBytes uint32) error {
	if length < 0 || (maxBytes > 0 && uint32(length) > maxBytes) {
		return fmt.Errorf("%w: %d (max %d)", ErrRequestTooLarge, length, maxBytes)
	}
	return nil
}

// EncodeRequest frames payload, serialised as JSON, behind the request header
func EncodeRequest(requestType types.RequestType, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request payload: %w", err)
	}
	encoder := serde.NewEncoder()
	encoder.PutInt8(uint8(requestType))
	encoder.PutInt32(uint32(len(body)))
	encoder.PutBytes(body)
	return encoder.Bytes(), nil
}

// WriteRequest encodes and writes a request frame
func WriteRequest(w io.Writer, requestType types.RequestType, payload any) error {
	frame, err := EncodeRequest(requestType, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadRequest reads exactly one request frame. It returns io.EOF if the stream ended
// before any byte of the frame and io.ErrUnexpectedEOF if it ended mid-frame.
// maxBytes of 0 disables the length limit; negative lengths are always rejected.
func ReadRequest(r io.Reader, maxBytes uint32) (types.Request, error) {
	// ReadFull (not Read) is used to ensure the entire frame is read. Partial data would result in parsing errors
	header := make([]byte, RequestHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return types.Request{}, err
	}
	decoder := serde.NewDecoder(header)
	req := types.Request{Type: types.RequestType(decoder.UInt8())}
	length := decoder.Int32()
	if err := checkLength(length, maxBytes); err != nil {
		return req, err
	}
	req.Length = uint32(length)
	req.Body = make([]byte, length)
	if _, err := io.ReadFull(r, req.Body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return req, err
	}
	return req, nil
}

// DecodePayload unmarshals the request body into v
func DecodePayload(req types.Request, v any) error {
	if err := json.Unmarshal(req.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// EncodeResponse frames resp behind its length
func EncodeResponse(resp Response) ([]byte, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	encoder := serde.NewEncoder()
	encoder.PutBytes(body)
	encoder.PutLen()
	return encoder.Bytes(), nil
}

// WriteResponse encodes and writes a response frame
func WriteResponse(w io.Writer, resp Response) error {
	frame, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadResponse reads exactly one response frame
func ReadResponse(r io.Reader, maxBytes uint32) (Response, error) {
	header := make([]byte, ResponseHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Response{}, err
	}
	decoder := serde.NewDecoder(header)
	length := decoder.Int32()
	if err := checkLength(length, maxBytes); err != nil {
		return Response{}, err
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Response{}, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return resp, nil
}

// NewErrorResponse wraps err into an unsuccessful response
func NewErrorResponse(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// NewDataResponse is a successful response whose Data is v serialised as JSON
func NewDataResponse(v any) (Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("encoding response data: %w", err)
	}
	return Response{Success: true, Data: string(data)}, nil
}

// DecodeData unmarshals a response's Data into v
func DecodeData(resp Response, v any) error {
	if err := json.Unmarshal([]byte(resp.Data), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
