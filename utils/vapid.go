package utils

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultVAPIDSubject = "mailto:admin@minigameheaven.app"

// VAPIDKeys holds the application server's long-term ES256 key pair
// used to prove origin to push services.
type VAPIDKeys struct {
	PublicKey string // unpadded URL-safe base64, 65-byte uncompressed point
	Subject   string
	signer    *ecdsa.PrivateKey
}

// ParseVAPIDKeys decodes a raw 32-byte P-256 scalar (the usual VAPID
// private key format) and checks it against the advertised public key.
func ParseVAPIDKeys(publicKey, privateKey, subject string) (*VAPIDKeys, error) {
	rawPriv, err := DecodeBase64URL(privateKey)
	if err != nil {
		return nil, fmt.Errorf("decode VAPID private key: %w", err)
	}
	if len(rawPriv) != 32 {
		return nil, fmt.Errorf("VAPID private key must be 32 bytes, got %d", len(rawPriv))
	}

	ecdhPriv, err := ecdh.P256().NewPrivateKey(rawPriv)
	if err != nil {
		return nil, fmt.Errorf("invalid VAPID private key: %w", err)
	}
	derivedPub := ecdhPriv.PublicKey().Bytes()

	rawPub, err := DecodeBase64URL(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decode VAPID public key: %w", err)
	}
	if !bytes.Equal(rawPub, derivedPub) {
		return nil, errors.New("VAPID public key does not match private key")
	}

	signer := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(derivedPub[1:33]),
			Y:     new(big.Int).SetBytes(derivedPub[33:65]),
		},
		D: new(big.Int).SetBytes(rawPriv),
	}

	if subject == "" {
		subject = defaultVAPIDSubject
	}
	return &VAPIDKeys{
		PublicKey: EncodeBase64URL(derivedPub),
		Subject:   subject,
		signer:    signer,
	}, nil
}

// LoadVAPIDKeysFromEnv reads VAPID_PUBLIC_KEY, VAPID_PRIVATE_KEY and
// VAPID_SUBJECT. Missing keys are an error; the caller decides whether
// that is fatal (the delivery engine treats it as one).
func LoadVAPIDKeysFromEnv() (*VAPIDKeys, error) {
	pub := os.Getenv("VAPID_PUBLIC_KEY")
	priv := os.Getenv("VAPID_PRIVATE_KEY")
	if pub == "" || priv == "" {
		return nil, errors.New("VAPID keys not configured")
	}
	return ParseVAPIDKeys(pub, priv, os.Getenv("VAPID_SUBJECT"))
}

// AuthorizationHeaders builds the Authorization and Crypto-Key headers
// for one delivery. The JWT audience is the push service origin, never
// the full endpoint URL, and the token is valid for 12 hours.
func (k *VAPIDKeys) AuthorizationHeaders(endpoint string) (map[string]string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("endpoint URL missing scheme or host: %q", endpoint)
	}
	audience := u.Scheme + "://" + u.Host

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"aud": audience,
		"exp": time.Now().Add(12 * time.Hour).Unix(),
		"sub": k.Subject,
	})
	signed, err := token.SignedString(k.signer)
	if err != nil {
		return nil, fmt.Errorf("sign VAPID token: %w", err)
	}

	return map[string]string{
		"Authorization": fmt.Sprintf("vapid t=%s, k=%s", signed, k.PublicKey),
		"Crypto-Key":    "p256ecdsa=" + k.PublicKey,
	}, nil
}
