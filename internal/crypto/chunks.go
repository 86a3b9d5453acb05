package crypto

import (
	"errors"
	"io"
)

// ChunkReader splits a stream into fixed-size chunks and reports which
// chunk is the last one, reading one chunk ahead to find out. The final
// chunk may be shorter than the chunk size, and an empty stream yields a
// single empty final chunk.
type ChunkReader struct {
	r       io.Reader
	size    int
	next    []byte
	eof     bool
	started bool
}

// NewChunkReader returns a ChunkReader that reads size-byte chunks from r.
func NewChunkReader(r io.Reader, size int) *ChunkReader {
	return &ChunkReader{r: r, size: size}
}

func (c *ChunkReader) fill() ([]byte, error) {
	buf := make([]byte, c.size)
	n, err := io.ReadFull(c.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		c.eof = true
		return buf[:n], nil
	default:
		return nil, err
	}
}

// Next returns the next chunk and whether it is the last one. Next must
// not be called again after it has reported the last chunk.
func (c *ChunkReader) Next() ([]byte, bool, error) {
	if !c.started {
		c.started = true
		first, err := c.fill()
		if err != nil {
			return nil, false, err
		}
		c.next = first
	}

	cur := c.next
	c.next = nil
	if c.eof {
		return cur, true, nil
	}

	next, err := c.fill()
	if err != nil {
		return nil, false, err
	}
	if len(next) == 0 {
		return cur, true, nil
	}
	c.next = next
	return cur, false, nil
}
