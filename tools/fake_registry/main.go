// Command fake_registry is a local stand-in for the external certificate
// registry. It verifies the engine's service token, accepts issuance
// requests, and answers asynchronously with RegistryIssued or
// RegistryRejected messages over NATS, with configurable latency and
// failure rate.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type issuanceRequest struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PointType     string    `json:"point_type"`
	GSRN          string    `json:"gsrn"`
	Quantity      int64     `json:"quantity"`
}

type confirmation struct {
	CertificateID uuid.UUID `json:"certificate_id"`
	PointType     string    `json:"point_type"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type server struct {
	signingKey      []byte
	conn            *nats.Conn
	issuedSubject   string
	rejectedSubject string
	latency         time.Duration
	rejectRate      float64

	accepted int64
	rejected int64
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	natsURL := flag.String("nats", nats.DefaultURL, "nats url")
	key := flag.String("key", os.Getenv("REGISTRY_SIGNING_KEY"), "shared hs256 key")
	latency := flag.Duration("latency", 200*time.Millisecond, "confirmation delay")
	rejectRate := flag.Float64("reject-rate", 0, "fraction of requests rejected (0..1)")
	issuedSubject := flag.String("issued-subject", "registry.certificate.issued", "issued confirmation subject")
	rejectedSubject := flag.String("rejected-subject", "registry.certificate.rejected", "rejected confirmation subject")
	flag.Parse()

	if *key == "" {
		log.Fatal("-key or REGISTRY_SIGNING_KEY is required")
	}

	conn, err := nats.Connect(*natsURL, nats.Name("fake-registry"))
	if err != nil {
		log.Fatalf("nats connect: %v", err)
	}
	defer conn.Close()

	s := &server{
		signingKey:      []byte(*key),
		conn:            conn,
		issuedSubject:   *issuedSubject,
		rejectedSubject: *rejectedSubject,
		latency:         *latency,
		rejectRate:      *rejectRate,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/certificates", s.handleIssuance)
	mux.HandleFunc("/stats", s.handleStats)

	log.Printf("fake registry listening on %s (reject-rate=%.2f latency=%s)", *addr, *rejectRate, *latency)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func (s *server) handleIssuance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	var req issuanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	if req.CertificateID == uuid.Nil {
		http.Error(w, "missing certificate id", http.StatusBadRequest)
		return
	}

	go s.confirmLater(req)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.signingKey, nil
	})
	return err == nil && token.Valid
}

func (s *server) confirmLater(req issuanceRequest) {
	time.Sleep(s.latency)

	msg := confirmation{
		CertificateID: req.CertificateID,
		PointType:     req.PointType,
		OccurredAt:    time.Now().UTC(),
	}
	subject := s.issuedSubject
	if rand.Float64() < s.rejectRate {
		subject = s.rejectedSubject
		msg.Reason = "simulated ledger rejection"
		atomic.AddInt64(&s.rejected, 1)
	} else {
		atomic.AddInt64(&s.accepted, 1)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal confirmation: %v", err)
		return
	}
	header := nats.Header{}
	header.Set(nats.MsgIdHdr, "registry-"+req.CertificateID.String()+"-"+subject)
	if err := s.conn.PublishMsg(&nats.Msg{Subject: subject, Header: header, Data: payload}); err != nil {
		log.Printf("publish confirmation: %v", err)
	}
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{
		"accepted": atomic.LoadInt64(&s.accepted),
		"rejected": atomic.LoadInt64(&s.rejected),
	})
}
