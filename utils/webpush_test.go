package utils

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

// Test vector from RFC 8291 appendix A. The ephemeral key and salt are
// fixed, so the whole message must match byte for byte.
const (
	rfcPlaintext  = "When I grow up, I want to be a watermelon"
	rfcUAPublic   = "BCVxsr7N_eNgVRqvHtD0zTZsEc6-VV-JvLexhqUzORcxaOzi6-AYWXvTBHm4bjyPjs7Vd8pZGH6SRpkNtoIAiw4"
	rfcUAPrivate  = "q1dXpw3UpT5VOmu_cf_v6ih07Aems3njxI-JWgLcM94"
	rfcAuthSecret = "BTBZMqHH6r4Tts7J_aSIgg"
	rfcASPrivate  = "yfWPiYE-n46HLnH0KqZOF1fJJU3MYrct3AELtAQ-oRw"
	rfcSalt       = "DGv6ra1nlYgDCS1FRnbzlw"
	rfcMessage    = "DGv6ra1nlYgDCS1FRnbzlwAAEABBBP4z9KsN6nGRTbVYI_c7VJSPQTBtkgcy" +
		"27mlmlMoZIIgDll6e3vCYLocInmYWAmS6TlzAC8wEqKK6PBru3jl7A_yl95b" +
		"Qpu6cVPTpK4Mqgkf1CXztLVBSt2Ks3oZwbuwXPXLWyouBWLVWGNWQexSgSxs" +
		"j_Qulcy4a-fN"
)

func TestEncryptWebPushKnownVector(t *testing.T) {
	privBytes, err := DecodeBase64URL(rfcASPrivate)
	require.NoError(t, err)
	serverKey, err := ecdh.P256().NewPrivateKey(privBytes)
	require.NoError(t, err)
	salt, err := DecodeBase64URL(rfcSalt)
	require.NoError(t, err)

	msg, err := encryptWebPush([]byte(rfcPlaintext), rfcUAPublic, rfcAuthSecret, serverKey, salt)
	require.NoError(t, err)

	want, err := DecodeBase64URL(rfcMessage)
	require.NoError(t, err)
	assert.Equal(t, want, msg)
}

func TestEncryptWebPushHeaderLayout(t *testing.T) {
	receiver, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	payload := []byte(`{"title":"hi"}`)
	msg, err := EncryptWebPushPayload(payload,
		EncodeBase64URL(receiver.PublicKey().Bytes()),
		EncodeBase64URL(auth))
	require.NoError(t, err)

	// salt(16) || rs(4) || idlen(1) || keyid(65) || ct(payload+delim+tag)
	require.Equal(t, 16+4+1+65+len(payload)+1+16, len(msg))
	assert.Equal(t, uint32(4096), binary.BigEndian.Uint32(msg[16:20]))
	assert.Equal(t, byte(65), msg[20])
	assert.Equal(t, byte(0x04), msg[21], "server key must be an uncompressed point")
}

func TestEncryptWebPushFreshRandomness(t *testing.T) {
	receiver, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	p256dh := EncodeBase64URL(receiver.PublicKey().Bytes())
	auth := EncodeBase64URL([]byte("0123456789abcdef"))

	a, err := EncryptWebPushPayload([]byte("x"), p256dh, auth)
	require.NoError(t, err)
	b, err := EncryptWebPushPayload([]byte("x"), p256dh, auth)
	require.NoError(t, err)

	assert.NotEqual(t, a[:16], b[:16], "salt must be fresh per message")
	assert.NotEqual(t, a[21:86], b[21:86], "ephemeral key must be fresh per message")
}

func TestEncryptWebPushRoundTrip(t *testing.T) {
	receiver, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte(`{"title":"Your throne is under attack!","body":"Ray just beat your score of 80 with 90!"}`),
		bytes.Repeat([]byte("n"), 2048),
	}
	for _, payload := range payloads {
		msg, err := EncryptWebPushPayload(payload,
			EncodeBase64URL(receiver.PublicKey().Bytes()),
			EncodeBase64URL(auth))
		require.NoError(t, err)

		got, err := decryptWebPush(msg, receiver, auth)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestEncryptWebPushPayloadSizeLimit(t *testing.T) {
	receiver, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	p256dh := EncodeBase64URL(receiver.PublicKey().Bytes())
	auth := EncodeBase64URL([]byte("0123456789abcdef"))

	// delimiter and AEAD tag leave 4079 bytes of room in the record
	_, err = EncryptWebPushPayload(bytes.Repeat([]byte("n"), 4079), p256dh, auth)
	require.NoError(t, err)

	_, err = EncryptWebPushPayload(bytes.Repeat([]byte("n"), 4080), p256dh, auth)
	assert.ErrorContains(t, err, "max 4079")
}

func TestEncryptWebPushRejectsBadKeys(t *testing.T) {
	_, err := EncryptWebPushPayload([]byte("x"), "!!!not base64!!!", "BTBZMqHH6r4Tts7J_aSIgg")
	assert.Error(t, err)

	// Valid base64 that is not a point on the curve.
	_, err = EncryptWebPushPayload([]byte("x"), EncodeBase64URL(bytes.Repeat([]byte{1}, 65)), "BTBZMqHH6r4Tts7J_aSIgg")
	assert.Error(t, err)
}

// decryptWebPush is the receiving side of RFC 8291, used only to prove
// the envelope round-trips.
func decryptWebPush(msg []byte, receiver *ecdh.PrivateKey, authSecret []byte) ([]byte, error) {
	salt := msg[:16]
	idlen := int(msg[20])
	serverPubBytes := msg[21 : 21+idlen]
	ciphertext := msg[21+idlen:]

	serverPub, err := ecdh.P256().NewPublicKey(serverPubBytes)
	if err != nil {
		return nil, err
	}
	sharedSecret, err := receiver.ECDH(serverPub)
	if err != nil {
		return nil, err
	}
	receiverPubBytes := receiver.PublicKey().Bytes()

	keyInfo := append([]byte("WebPush: info\x00"), append(receiverPubBytes, serverPubBytes...)...)
	prk := hkdf.Extract(sha256.New, sharedSecret, authSecret)
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, keyInfo), ikm); err != nil {
		return nil, err
	}

	contentPRK := hkdf.Extract(sha256.New, ikm, salt)
	cek := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, contentPRK, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, err
	}
	nonce := make([]byte, 12)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, contentPRK, []byte("Content-Encoding: nonce\x00")), nonce); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	record, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, err
	}
	// strip the last-record padding delimiter
	return record[:len(record)-1], nil
}
