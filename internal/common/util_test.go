package common

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

// ---------- Timestamp ----------

func TestTimestamp_UTCAndParsable(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	in := time.Date(2025, 3, 1, 12, 30, 0, 1500, loc)

	s := Timestamp(in)
	assert.Equal(t, "2025-03-01T09:30:00.000001Z", s)

	back, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	assert.True(t, back.Equal(in.Truncate(time.Microsecond)))
}

func TestTimestamp_SortsLexically(t *testing.T) {
	a := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(500 * time.Millisecond)
	assert.Less(t, Timestamp(a), Timestamp(b))
}

// ---------- MaskSecret ----------

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret("", 5))
	assert.Equal(t, "***", MaskSecret("abc", 5))
	assert.Equal(t, "AIzaS...", MaskSecret("AIzaSyD-long-key", 5))
}
