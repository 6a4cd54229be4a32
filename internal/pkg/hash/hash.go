package hash

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"io"
)

// Digest contains MD5 checksum of content.
type Digest struct {
	Sum  []byte
	Size int64
}

// Hex returns checksum in hex encoding.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.Sum)
}

// Base64 returns checksum in the form used by Content-MD5 header.
func (d Digest) Base64() string {
	return base64.StdEncoding.EncodeToString(d.Sum)
}

// CalculateMD5 reads r until EOF and returns its digest.
func CalculateMD5(r io.Reader) (Digest, error) {
	hash := md5.New()
	size, err := io.Copy(hash, r)
	if err != nil {
		return Digest{Size: size}, err
	}
	return Digest{Sum: hash.Sum(nil), Size: size}, nil
}

// TeeMD5 returns reader that calculates digest of everything read from r.
//
// Digest is available after reader was read until EOF.
func TeeMD5(r io.Reader) (io.Reader, func() Digest) {
	hash := md5.New()
	counter := countingWriter{Writer: hash}
	reader := io.TeeReader(r, &counter)
	return reader, func() Digest {
		return Digest{Sum: hash.Sum(nil), Size: counter.size}
	}
}

type countingWriter struct {
	io.Writer
	size int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	w.size += int64(n)
	return n, err
}
