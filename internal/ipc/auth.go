package ipc

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const nonceSize = 32

var (
	welcome = []byte("#WELCOME#")
	failure = []byte("#FAILURE#")
	ack     = []byte("#OK#")
)

// digest is keyed BLAKE2b-256 over nonce. The shared key is hashed first
// because BLAKE2b keys are limited to 64 bytes and identities are not.
func digest(key, nonce []byte) []byte {
	k := blake2b.Sum256(key)
	h, err := blake2b.New256(k[:])
	if err != nil {
		// Unreachable: a 32-byte key is always valid.
		panic(err)
	}
	h.Write(nonce)
	return h.Sum(nil)
}

// deliverChallenge sends a nonce and checks the peer's digest of it.
func deliverChallenge(w io.Writer, r *bufio.Reader, key []byte) error {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("ipc: generate nonce: %w", err)
	}
	if err := writeBytes(w, nonce); err != nil {
		return err
	}
	resp, err := readBytes(r)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(resp, digest(key, nonce)) != 1 {
		writeBytes(w, failure)
		return ErrAuth
	}
	return writeBytes(w, welcome)
}

// answerChallenge answers a peer's nonce and waits for its verdict.
func answerChallenge(w io.Writer, r *bufio.Reader, key []byte) error {
	nonce, err := readBytes(r)
	if err != nil {
		return err
	}
	if len(nonce) != nonceSize {
		return fmt.Errorf("%w: challenge of %d bytes", ErrBadFrame, len(nonce))
	}
	if err := writeBytes(w, digest(key, nonce)); err != nil {
		return err
	}
	verdict, err := readBytes(r)
	if err != nil {
		return err
	}
	if !bytes.Equal(verdict, welcome) {
		return ErrAuth
	}
	return nil
}

// serverHandshake authenticates the client first, then itself.
func serverHandshake(w io.Writer, r *bufio.Reader, key []byte) error {
	if err := deliverChallenge(w, r, key); err != nil {
		return err
	}
	return answerChallenge(w, r, key)
}

// clientHandshake mirrors serverHandshake.
func clientHandshake(w io.Writer, r *bufio.Reader, key []byte) error {
	if err := answerChallenge(w, r, key); err != nil {
		return err
	}
	return deliverChallenge(w, r, key)
}
