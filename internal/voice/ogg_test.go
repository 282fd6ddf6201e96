package voice

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oggPageBytes builds a minimal ogg page carrying packets.
func oggPageBytes(headerType byte, packets ...[]byte) []byte {
	var table, data []byte
	for _, p := range packets {
		n := len(p)
		for n >= 255 {
			table = append(table, 255)
			n -= 255
		}
		table = append(table, byte(n))
		data = append(data, p...)
	}

	hdr := make([]byte, 27)
	copy(hdr, "OggS")
	hdr[5] = headerType
	hdr[26] = byte(len(table))

	page := append(hdr, table...)
	return append(page, data...)
}

func TestOggReaderSplitsPackets(t *testing.T) {
	long := bytes.Repeat([]byte{7}, 300)

	var buf bytes.Buffer
	buf.WriteString("junk")
	buf.Write(oggPageBytes(0x02, []byte("OpusHead........")))
	buf.Write(oggPageBytes(0, []byte("OpusTags........")))
	buf.Write(oggPageBytes(0, []byte{1, 2, 3}, long, []byte{9}))

	r := newOggReader(&buf)

	page, err := r.next()
	require.NoError(t, err)
	assert.True(t, page.isHeader)

	page, err = r.next()
	require.NoError(t, err)
	assert.True(t, page.isHeader)

	page, err = r.next()
	require.NoError(t, err)
	assert.False(t, page.isHeader)
	require.Len(t, page.packets, 3)
	assert.Equal(t, []byte{1, 2, 3}, page.packets[0])
	assert.Len(t, page.packets[1], 300)
	assert.Equal(t, []byte{9}, page.packets[2])

	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestExtractPacketsExactLacing(t *testing.T) {
	packet := bytes.Repeat([]byte{1}, 255)
	packets := extractPackets([]byte{255, 0, 2}, append(packet, 4, 5))

	require.Len(t, packets, 2)
	assert.Len(t, packets[0], 255)
	assert.Equal(t, []byte{4, 5}, packets[1])
}

func TestExtractPacketsTruncatedPage(t *testing.T) {
	packets := extractPackets([]byte{3, 10}, []byte{1, 2, 3, 4})

	require.Len(t, packets, 1)
	assert.Equal(t, []byte{1, 2, 3}, packets[0])
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("https://example.com/a.mp3", 0, 1)
	assert.NotContains(t, args, "-ss")
	assert.Contains(t, args, "volume=1.00")

	args = ffmpegArgs("https://example.com/a.mp3", 30.25, 0.5)
	require.Contains(t, args, "-ss")
	for i, a := range args {
		if a == "-ss" {
			assert.Equal(t, "30.250", args[i+1])
			assert.Equal(t, "-i", args[i+2])
		}
	}
	assert.Contains(t, args, "volume=0.50")
	assert.Equal(t, "pipe:1", args[len(args)-1])
}
