package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/psaab/cfgblock/pkg/configstore"
)

func TestSelfSignedCert(t *testing.T) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(leaf.DNSNames, "localhost") {
		t.Errorf("DNSNames = %v, want localhost", leaf.DNSNames)
	}
	if time.Until(leaf.NotAfter) < 300*24*time.Hour {
		t.Errorf("certificate expires too soon: %v", leaf.NotAfter)
	}
}

func TestServeHTTPAndHTTPS(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	tlsLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	httpsAddr := tlsLn.Addr().String()
	tlsLn.Close()

	s := NewServer(Config{
		HTTPSAddr: httpsAddr,
		TLS:       true,
		Store:     configstore.New(0),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	client := &http.Client{
		Timeout: time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	get := func(url string) int {
		deadline := time.Now().Add(5 * time.Second)
		for {
			resp, err := client.Get(url)
			if err == nil {
				resp.Body.Close()
				return resp.StatusCode
			}
			if time.Now().After(deadline) {
				t.Fatalf("GET %s: %v", url, err)
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	if code := get("http://" + ln.Addr().String() + "/health"); code != http.StatusOK {
		t.Errorf("HTTP /health = %d", code)
	}
	if code := get("https://" + httpsAddr + "/api/v1/devices"); code != http.StatusOK {
		t.Errorf("HTTPS /api/v1/devices = %d", code)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeHTTPSListenFailureStopsHTTP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()

	s := NewServer(Config{
		HTTPSAddr: busy.Addr().String(),
		TLS:       true,
		Store:     configstore.New(0),
	})
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Serve returned nil, want listen error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after HTTPS listen failure")
	}

	client := &http.Client{Timeout: time.Second}
	if resp, err := client.Get("http://" + ln.Addr().String() + "/health"); err == nil {
		resp.Body.Close()
		t.Errorf("HTTP server still answering after Serve returned: %d", resp.StatusCode)
	}
}
