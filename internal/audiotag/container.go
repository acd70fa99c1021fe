package audiotag

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacvorbis"
	flac "github.com/go-flac/go-flac"
)

// ErrUnsupportedFormat reports a classified audio file whose container has
// no writable tag backend. Callers skip these files rather than failing.
var ErrUnsupportedFormat = errors.New("unsupported audio container")

// Open wraps the file's preferred tag as a Container: the ID3v2 tag for
// MP3, the first Vorbis comment block for FLAC. Other audio extensions are
// classified but have no writable backend and return ErrUnsupportedFormat.
func Open(path string) (Container, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp3":
		return openID3(path)
	case "flac":
		return openFLAC(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// id3Container edits the ID3v2 tag of an MP3 in place. Only text frames
// (T***) are exposed; binary and structured frames pass through untouched.
type id3Container struct {
	tag *id3v2.Tag
}

func openID3(path string) (Container, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("parse id3 tag: %w", err)
	}
	return &id3Container{tag: tag}, nil
}

func (c *id3Container) TextFields() map[string][]string {
	out := make(map[string][]string)
	for id, frames := range c.tag.AllFrames() {
		if !strings.HasPrefix(id, "T") {
			continue
		}
		for _, frame := range frames {
			tf, ok := frame.(id3v2.TextFrame)
			if !ok {
				continue
			}
			out[id] = append(out[id], tf.Text)
		}
	}
	return out
}

func (c *id3Container) SetText(key string, values ...string) {
	if !strings.HasPrefix(key, "T") || len(values) == 0 {
		return
	}
	// An ID3v2.3 text frame holds a single string; joint values follow the
	// TPE1 "/" convention.
	c.tag.AddTextFrame(key, id3v2.EncodingUTF8, strings.Join(values, "/"))
}

func (c *id3Container) Save() error {
	return c.tag.Save()
}

func (c *id3Container) Close() error {
	return c.tag.Close()
}

// flacContainer edits the Vorbis comment block of a FLAC stream in place.
// The block is parsed once on open and marshalled back on save; a file
// without one gets a fresh block appended.
type flacContainer struct {
	path string
	file *flac.File
	cmts *flacvorbis.MetaDataBlockVorbisComment
	idx  int
}

func openFLAC(path string) (Container, error) {
	file, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse flac stream: %w", err)
	}

	idx := -1
	var cmts *flacvorbis.MetaDataBlockVorbisComment
	for i, block := range file.Meta {
		if block.Type != flac.VorbisComment {
			continue
		}
		parsed, err := flacvorbis.ParseFromMetaDataBlock(*block)
		if err != nil {
			return nil, fmt.Errorf("parse vorbis comment: %w", err)
		}
		cmts = parsed
		idx = i
		break
	}
	if cmts == nil {
		cmts = flacvorbis.New()
	}
	return &flacContainer{path: path, file: file, cmts: cmts, idx: idx}, nil
}

func (c *flacContainer) TextFields() map[string][]string {
	out := make(map[string][]string)
	for _, comment := range c.cmts.Comments {
		key, value, ok := strings.Cut(comment, "=")
		if !ok {
			continue
		}
		key = strings.ToUpper(key)
		out[key] = append(out[key], value)
	}
	return out
}

func (c *flacContainer) SetText(key string, values ...string) {
	key = strings.ToUpper(key)
	rebuilt := make([]string, 0, len(c.cmts.Comments)+len(values))
	replaced := false
	for _, comment := range c.cmts.Comments {
		k, _, ok := strings.Cut(comment, "=")
		if !ok || strings.ToUpper(k) != key {
			rebuilt = append(rebuilt, comment)
			continue
		}
		// All occurrences collapse into the new values at the first one's
		// position, preserving the surrounding comment order.
		if !replaced {
			for _, value := range values {
				rebuilt = append(rebuilt, key+"="+value)
			}
			replaced = true
		}
	}
	if !replaced {
		for _, value := range values {
			rebuilt = append(rebuilt, key+"="+value)
		}
	}
	c.cmts.Comments = rebuilt
}

func (c *flacContainer) Save() error {
	block := c.cmts.Marshal()
	if c.idx >= 0 {
		c.file.Meta[c.idx] = &block
	} else {
		c.file.Meta = append(c.file.Meta, &block)
		c.idx = len(c.file.Meta) - 1
	}
	return c.file.Save(c.path)
}

func (c *flacContainer) Close() error {
	return nil
}
