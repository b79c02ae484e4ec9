package encoder

import (
	"fmt"

	"github.com/jittakal/targets3/pkg/encoder"
	"github.com/jittakal/targets3/pkg/message"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      message.Format
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format message.Format, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
// An empty format selects JSON lines.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	switch f.format {
	case message.FormatJSON, "":
		return NewJSONLinesEncoder(), nil
	case message.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case message.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []message.Format {
	return []message.Format{
		message.FormatJSON,
		message.FormatParquet,
		message.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format message.Format) []string {
	switch format {
	case message.FormatJSON:
		return []string{"none"}
	case message.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case message.FormatAvro:
		return []string{"null", "deflate", "snappy"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format message.Format) string {
	switch format {
	case message.FormatParquet:
		return "snappy"
	case message.FormatAvro:
		return "deflate"
	default:
		return "none"
	}
}
