// Copyright 2026 The Meshnet Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// ErrSealedDestroyed is returned when a sealed buffer is used after Destroy.
var ErrSealedDestroyed = errors.New("identity: sealed buffer destroyed")

// SealedBuffer holds private key material in memory that the Go garbage
// collector never sees. The region is an anonymous mmap, locked into
// physical RAM (no swap) and excluded from core dumps. Destroy zeroes the
// region before unmapping it.
//
// A SealedBuffer must not be copied after creation.
type SealedBuffer struct {
	mu        sync.Mutex
	region    []byte
	destroyed bool
}

// SealBytes copies the source into a freshly sealed region and zeroes the
// caller's slice, so the only live copy of the secret is the sealed one.
func SealBytes(source []byte) (*SealedBuffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("identity: cannot seal empty key material")
	}

	region, err := unix.Mmap(-1, 0, len(source), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("identity: mmap for sealed buffer: %w", err)
	}
	if err := unix.Mlock(region); err != nil {
		unix.Munmap(region)
		return nil, fmt.Errorf("identity: mlock for sealed buffer: %w", err)
	}
	// MADV_DONTDUMP may be unsupported on older kernels; the mlock above
	// already keeps the key out of swap, so a failure here is tolerable.
	_ = unix.Madvise(region, unix.MADV_DONTDUMP)

	copy(region, source)
	for index := range source {
		source[index] = 0
	}

	return &SealedBuffer{region: region}, nil
}

// Use invokes fn with the sealed bytes while holding the buffer's lock.
// fn must not retain the slice: it aliases the sealed region, which is
// zeroed on Destroy.
func (b *SealedBuffer) Use(fn func(data []byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrSealedDestroyed
	}
	return fn(b.region)
}

// Destroy zeroes the sealed region, unlocks it, and unmaps it. Destroy is
// idempotent.
func (b *SealedBuffer) Destroy() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil
	}
	for index := range b.region {
		b.region[index] = 0
	}
	if err := unix.Munlock(b.region); err != nil {
		return fmt.Errorf("identity: munlock sealed buffer: %w", err)
	}
	if err := unix.Munmap(b.region); err != nil {
		return fmt.Errorf("identity: munmap sealed buffer: %w", err)
	}
	b.region = nil
	b.destroyed = true
	return nil
}

// Destroyed reports whether the buffer has been destroyed.
func (b *SealedBuffer) Destroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}
