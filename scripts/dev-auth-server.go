//go:build ignore

// dev-auth-server.go - Local JWKS and token issuer for testing the admin API
//
// Usage:
//   go run scripts/dev-auth-server.go
//
// The server generates an ephemeral RSA key on startup, publishes it at
// /.well-known/jwks.json and issues RS256 tokens signed with it. Point the
// gateway at it to exercise the authenticated routes locally:
//
//   jwks:
//     url: http://localhost:8088/.well-known/jwks.json
//     issuer: http://localhost:8088

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	port   = 8088
	keyID  = "dev-1"
	issuer = "http://localhost:8088"
)

var signingKey *rsa.PrivateKey

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func main() {
	var err error
	signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalf("Failed to generate RSA key: %v", err)
	}

	http.HandleFunc("/.well-known/jwks.json", handleJWKS)
	http.HandleFunc("/oauth/token", handleToken)
	http.HandleFunc("/health", handleHealth)

	starter, err := issueToken("local-admin")
	if err != nil {
		log.Fatalf("Failed to issue starter token: %v", err)
	}

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Dev auth server starting on http://localhost%s", addr)
	log.Printf("GET  /.well-known/jwks.json - JWKS document for the gateway config")
	log.Printf("POST /oauth/token           - Returns an RS256 JWT (24h expiry)")
	log.Printf("GET  /health                - Health check")
	log.Println()
	log.Printf("Starter token (sub=local-admin):")
	log.Println(starter)
	log.Println()
	log.Printf("Use it with: curl -H 'Authorization: Bearer <token>' -X PUT .../api/v1/fees/treasury")
	log.Fatal(http.ListenAndServe(addr, nil))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func handleJWKS(w http.ResponseWriter, r *http.Request) {
	doc := map[string]any{
		"keys": []map[string]string{{
			"kid": keyID,
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(signingKey.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(signingKey.PublicKey.E)).Bytes()),
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Accept form data or a JSON body (client_credentials grant).
	contentType := r.Header.Get("Content-Type")
	var clientID string

	if strings.Contains(contentType, "application/json") {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "Failed to parse JSON body", http.StatusBadRequest)
			return
		}
		clientID = body["client_id"]
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Failed to parse form", http.StatusBadRequest)
			return
		}
		clientID = r.FormValue("client_id")
	}

	// The client_id becomes the JWT subject.
	if clientID == "" {
		clientID = "local-admin"
	}

	token, err := issueToken(clientID)
	if err != nil {
		http.Error(w, "Failed to sign token", http.StatusInternalServerError)
		return
	}

	resp := tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   86400,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)

	log.Printf("Issued token for sub=%s", clientID)
}

func issueToken(subject string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(24 * time.Hour).Unix(),
	})
	token.Header["kid"] = keyID
	return token.SignedString(signingKey)
}
