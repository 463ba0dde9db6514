// Package cryptox implements password hashing and verification for stored
// user credentials using argon2id.
package cryptox

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"runtime"

	"github.com/dmitrijs2005/minitwit/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/sync/semaphore"
)

// Params holds the argon2id cost settings. MemoryKiB is expressed in KiB.
type Params struct {
	Iterations    uint32
	MemoryKiB     uint32
	Parallelism   uint8
	TagLength     uint32
	SaltLength    uint32
	MaxConcurrent int64
}

// DefaultParams returns production-grade settings.
func DefaultParams() Params {
	return Params{
		Iterations:    4,
		MemoryKiB:     64 * 1024,
		Parallelism:   4,
		TagLength:     128,
		SaltLength:    16,
		MaxConcurrent: int64(runtime.NumCPU()),
	}
}

// ErrInvalidParams is returned by NewArgon2Hasher when a cost setting is zero.
var ErrInvalidParams = errors.New("invalid argon2 parameters")

// Argon2Hasher derives and checks argon2id password hashes. Hash and salt are
// exchanged as standard base64 strings.
//
// Derivations run on a separate goroutine and at most MaxConcurrent of them
// run at once, so a burst of logins cannot exhaust memory.
type Argon2Hasher struct {
	params Params
	sem    *semaphore.Weighted
}

func NewArgon2Hasher(p Params) (*Argon2Hasher, error) {
	if p.Iterations == 0 || p.MemoryKiB == 0 || p.Parallelism == 0 || p.TagLength == 0 || p.SaltLength == 0 {
		return nil, ErrInvalidParams
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 1
	}
	return &Argon2Hasher{params: p, sem: semaphore.NewWeighted(p.MaxConcurrent)}, nil
}

// Hash generates a fresh salt and derives the hash of plaintext.
func (h *Argon2Hasher) Hash(ctx context.Context, plaintext string) (hash, salt string, err error) {
	saltBytes := common.GenerateRandByteArray(int(h.params.SaltLength))

	key, err := h.derive(ctx, []byte(plaintext), saltBytes)
	if err != nil {
		return "", "", err
	}

	return base64.StdEncoding.EncodeToString(key), base64.StdEncoding.EncodeToString(saltBytes), nil
}

// Verify reports whether plaintext matches the stored hash and salt.
// Malformed input and a cancelled context both yield false.
func (h *Argon2Hasher) Verify(ctx context.Context, plaintext, storedHash, storedSalt string) bool {
	want, err := base64.StdEncoding.DecodeString(storedHash)
	if err != nil || len(want) == 0 {
		return false
	}
	saltBytes, err := base64.StdEncoding.DecodeString(storedSalt)
	if err != nil || len(saltBytes) == 0 {
		return false
	}
	if uint32(len(want)) != h.params.TagLength {
		return false
	}

	got, err := h.derive(ctx, []byte(plaintext), saltBytes)
	if err != nil {
		return false
	}
	defer common.WipeByteArray(got)

	return subtle.ConstantTimeCompare(got, want) == 1
}

func (h *Argon2Hasher) derive(ctx context.Context, password, salt []byte) ([]byte, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan []byte, 1)
	go func() {
		defer h.sem.Release(1)
		done <- argon2.IDKey(password, salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.TagLength)
	}()

	select {
	case key := <-done:
		return key, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
