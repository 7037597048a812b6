// Package containerfmt implements the fixed on-disk header and chunk
// framing for the backup container: magic/version/flags validation,
// little-endian integer I/O, and the 20-byte chunk header.
package containerfmt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/kenneth/rbuvault/internal/containererr"
)

const (
	// Magic is the fixed 12-byte ASCII literal identifying the container
	// format. It must never change; a format break requires a new
	// literal and a version bump, not a rewrite of this constant.
	Magic = "RBUVAULT001!"

	// MagicSize, HeaderSize, ChunkHeaderSize, SaltSize, and NonceSize are
	// the stable wire-format parameter constants from spec.md §6.
	MagicSize       = 12
	HeaderSize      = 36
	ChunkHeaderSize = 20
	SaltSize        = 16
	NonceSize       = 12
	TagSize         = 16

	// CurrentVersion is the format version this build writes.
	CurrentVersion = 1
	// MaxSupportedVersion is the highest header version this build will
	// attempt to read.
	MaxSupportedVersion = 1
)

func init() {
	if len(Magic) != MagicSize {
		panic("containerfmt: Magic literal must be exactly MagicSize bytes")
	}
}

// ChunkType tags the payload carried by one chunk.
type ChunkType uint8

const (
	ChunkManifest ChunkType = 0
	ChunkDatabase ChunkType = 1
	ChunkBlob     ChunkType = 2
)

func (t ChunkType) String() string {
	switch t {
	case ChunkManifest:
		return "manifest"
	case ChunkDatabase:
		return "database"
	case ChunkBlob:
		return "blob"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Header is the fixed 36-byte plaintext header at offset 0 of the file.
type Header struct {
	Version uint16
	Flags   uint16
	Salt    [SaltSize]byte
}

// WriteHeader serializes h to w in the bit-exact layout from spec.md §6.
func WriteHeader(w io.Writer, h Header) error {
	buf := make([]byte, HeaderSize)
	copy(buf[0:MagicSize], Magic)
	binary.LittleEndian.PutUint16(buf[12:14], h.Version)
	binary.LittleEndian.PutUint16(buf[14:16], h.Flags)
	copy(buf[16:32], h.Salt[:])
	// buf[32:36] reserved, left zero.

	_, err := w.Write(buf)
	return err
}

// ReadHeader parses and validates the fixed header from r.
func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return Header{}, containererr.Wrap(containererr.InvalidContainer, fmt.Sprintf("too small: read %d of %d header bytes", n, HeaderSize), err)
		}
		return Header{}, containererr.Wrap(containererr.IoError, "reading header", err)
	}

	if string(buf[0:MagicSize]) != Magic {
		return Header{}, containererr.New(containererr.InvalidContainer, "wrong magic")
	}

	version := binary.LittleEndian.Uint16(buf[12:14])
	if version > MaxSupportedVersion {
		return Header{}, containererr.New(containererr.UnsupportedVersion, fmt.Sprintf("version %d exceeds supported maximum %d", version, MaxSupportedVersion))
	}

	h := Header{
		Version: version,
		Flags:   binary.LittleEndian.Uint16(buf[14:16]),
	}
	copy(h.Salt[:], buf[16:32])
	return h, nil
}

// ChunkHeader is the fixed 20-byte framing that precedes every chunk's
// ciphertext.
type ChunkHeader struct {
	PayloadLength uint32
	Type          ChunkType
	Nonce         [NonceSize]byte
}

// WriteChunkHeader serializes ch to w.
func WriteChunkHeader(w io.Writer, ch ChunkHeader) error {
	buf := make([]byte, ChunkHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], ch.PayloadLength)
	buf[4] = byte(ch.Type)
	// buf[5:8] reserved, left zero.
	copy(buf[8:20], ch.Nonce[:])

	_, err := w.Write(buf)
	return err
}

// ReadChunkHeader parses one chunk header from r.
func ReadChunkHeader(r io.Reader) (ChunkHeader, error) {
	buf := make([]byte, ChunkHeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if err == io.EOF {
			return ChunkHeader{}, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return ChunkHeader{}, containererr.Wrap(containererr.Truncated, fmt.Sprintf("chunk header straddles EOF: read %d of %d bytes", n, ChunkHeaderSize), err)
		}
		return ChunkHeader{}, containererr.Wrap(containererr.IoError, "reading chunk header", err)
	}

	ch := ChunkHeader{
		PayloadLength: binary.LittleEndian.Uint32(buf[0:4]),
		Type:          ChunkType(buf[4]),
	}
	copy(ch.Nonce[:], buf[8:20])
	return ch, nil
}
