package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
)

// WriteJSON writes the checkpoint as indented JSON.
func (c *Checkpoint) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(c)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", c.ID, err)
	}

	return nil
}

// ReadJSON reads a checkpoint written by WriteJSON.
func ReadJSON(r io.Reader) (*Checkpoint, error) {
	c := new(Checkpoint)

	err := json.NewDecoder(r).Decode(c)
	if err != nil {
		return nil, fmt.Errorf("decoding checkpoint: %w", err)
	}

	return c, nil
}

// Digest hashes the content of the checkpoint. The ID is not part of the
// content, so two renderings of the same state have the same digest.
func (c *Checkpoint) Digest() uint64 {
	content := *c
	content.ID = ""

	// Map keys are sorted by the encoder, so the output is canonical.
	buf, err := json.Marshal(&content)
	if err != nil {
		panic(err)
	}

	return xxhash.Sum64(buf)
}
