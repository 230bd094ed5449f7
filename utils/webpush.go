package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Web Push message encryption per RFC 8291, framed with the aes128gcm
// content coding of RFC 8188. The whole payload is carried in a single
// record, so the record size field is fixed at 4096 and the plaintext
// ends with the 0x02 last-record padding delimiter.
const webPushRecordSize = 4096

// One record holds the payload plus the padding delimiter and the
// 16-byte AEAD tag, and must not exceed the advertised record size.
const maxWebPushPayload = webPushRecordSize - 17

// EncryptWebPushPayload builds the binary body for a Web Push POST from
// the subscription's p256dh public key and auth secret. A fresh
// ephemeral P-256 key pair and 16-byte salt are generated per message.
func EncryptWebPushPayload(payload []byte, p256dh, auth string) ([]byte, error) {
	serverKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return encryptWebPush(payload, p256dh, auth, serverKey, salt)
}

// encryptWebPush is the deterministic core: all randomness is passed in
// so known-vector tests can drive it.
func encryptWebPush(payload []byte, p256dh, auth string, serverKey *ecdh.PrivateKey, salt []byte) ([]byte, error) {
	if len(salt) != 16 {
		return nil, fmt.Errorf("salt must be 16 bytes, got %d", len(salt))
	}
	if len(payload) > maxWebPushPayload {
		return nil, fmt.Errorf("payload is %d bytes, max %d for a single record", len(payload), maxWebPushPayload)
	}

	clientPubBytes, err := DecodeBase64URL(p256dh)
	if err != nil {
		return nil, fmt.Errorf("decode p256dh key: %w", err)
	}
	authSecret, err := DecodeBase64URL(auth)
	if err != nil {
		return nil, fmt.Errorf("decode auth secret: %w", err)
	}

	clientPub, err := ecdh.P256().NewPublicKey(clientPubBytes)
	if err != nil {
		return nil, fmt.Errorf("import p256dh key: %w", err)
	}
	sharedSecret, err := serverKey.ECDH(clientPub)
	if err != nil {
		return nil, fmt.Errorf("ECDH agreement: %w", err)
	}
	serverPubBytes := serverKey.PublicKey().Bytes()

	// IKM = HKDF(salt=auth_secret, ikm=ecdh_secret,
	//            info="WebPush: info" || 0x00 || ua_public || as_public)
	// The info binds both public keys so a key derived for one endpoint
	// can never decrypt a message built for another.
	keyInfo := make([]byte, 0, 14+len(clientPubBytes)+len(serverPubBytes))
	keyInfo = append(keyInfo, []byte("WebPush: info\x00")...)
	keyInfo = append(keyInfo, clientPubBytes...)
	keyInfo = append(keyInfo, serverPubBytes...)
	prk := hkdf.Extract(sha256.New, sharedSecret, authSecret)
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, keyInfo), ikm); err != nil {
		return nil, fmt.Errorf("derive input keying material: %w", err)
	}

	contentPRK := hkdf.Extract(sha256.New, ikm, salt)
	cek := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, contentPRK, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, fmt.Errorf("derive content encryption key: %w", err)
	}
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, contentPRK, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, fmt.Errorf("derive nonce: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	// Single record: plaintext followed by the last-record delimiter.
	record := make([]byte, 0, len(payload)+1)
	record = append(record, payload...)
	record = append(record, 0x02)
	ciphertext := aead.Seal(nil, nonce, record, nil)

	// Header: salt(16) || rs(4) || idlen(1) || keyid(65). Push services
	// parse this positionally, so the layout is a compatibility contract.
	out := make([]byte, 0, 16+4+1+len(serverPubBytes)+len(ciphertext))
	out = append(out, salt...)
	out = binary.BigEndian.AppendUint32(out, webPushRecordSize)
	out = append(out, byte(len(serverPubBytes)))
	out = append(out, serverPubBytes...)
	out = append(out, ciphertext...)
	return out, nil
}

// DecodeBase64URL decodes URL-safe base64 with or without padding, and
// tolerates standard-alphabet input the way browser subscription
// payloads sometimes arrive.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "+", "-")
	s = strings.ReplaceAll(s, "/", "_")
	return base64.RawURLEncoding.DecodeString(s)
}

// EncodeBase64URL encodes to unpadded URL-safe base64, the form used
// throughout the Web Push headers and key exchange.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
