package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PartitionInfo describes a partition on the admin endpoint
type PartitionInfo struct {
	Index         uint32 `json:"index"`
	HighWatermark int64  `json:"high_watermark"`
}

// TopicInfo describes a topic on the admin endpoint
type TopicInfo struct {
	Name       string          `json:"name"`
	Partitions []PartitionInfo `json:"partitions"`
}

// AdminHandler serves /healthz, /metrics and /topics
func (s *Server) AdminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	r.Route("/topics", func(r chi.Router) {
		r.Get("/", s.listTopics)
		r.Get("/{topicName}", s.getTopic)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "broker_id": s.Broker.ID})
}

func (s *Server) listTopics(w http.ResponseWriter, r *http.Request) {
	topics := []TopicInfo{}
	for _, topic := range s.Broker.Topics() {
		topics = append(topics, s.topicInfo(topic.Name))
	}
	writeJSON(w, http.StatusOK, topics)
}

func (s *Server) getTopic(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "topicName")
	if _, ok := s.Broker.GetTopic(name); !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "topic not found", "topic": name})
		return
	}
	writeJSON(w, http.StatusOK, s.topicInfo(name))
}

func (s *Server) topicInfo(name string) TopicInfo {
	info := TopicInfo{Name: name, Partitions: []PartitionInfo{}}
	topic, ok := s.Broker.GetTopic(name)
	if !ok {
		return info
	}
	for _, p := range topic.Partitions() {
		info.Partitions = append(info.Partitions, PartitionInfo{Index: p.Index, HighWatermark: p.HighWatermark()})
	}
	return info
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
