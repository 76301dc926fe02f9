package voice

// Buffer accumulates the audio fragments of one recording.
type Buffer struct {
	fragments [][]byte
	size      int
}

// Append stores a copy of data. Empty fragments are dropped.
func (b *Buffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	frag := make([]byte, len(data))
	copy(frag, data)
	b.fragments = append(b.fragments, frag)
	b.size += len(frag)
}

func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) Fragments() int {
	return len(b.fragments)
}

// Drain concatenates every fragment into one payload and empties the buffer.
func (b *Buffer) Drain() []byte {
	if b.size == 0 {
		b.Reset()
		return nil
	}
	payload := make([]byte, 0, b.size)
	for _, frag := range b.fragments {
		payload = append(payload, frag...)
	}
	b.Reset()
	return payload
}

func (b *Buffer) Reset() {
	b.fragments = nil
	b.size = 0
}
