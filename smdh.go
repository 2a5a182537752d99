package ctrcia

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/hax0kartik/ctrcia/ctrutil"
)

type SMDH struct {
	Title   SMDHTitle
	Regions []string

	// SmallIcon is the raw 24x24 RGB565 icon bitmap, smallIconSize bytes.
	SmallIcon []byte
	// LargeIcon is the raw 48x48 RGB565 icon bitmap, largeIconSize bytes.
	LargeIcon []byte
}

const (
	smallIconWidth = 24
	largeIconWidth = 48
	smallIconSize  = 0x480
	largeIconSize  = 0x1200
)

type SMDHTitle struct {
	ShortDescription string
	LongDescription  string
	Publisher        string
}

// smdhSize is the fixed size of an SMDH icon/metadata blob, as stored in an
// ExeFS "icon" file.
const smdhSize = 0x36c0

func ParseSMDH(input io.Reader) (*SMDH, error) {
	reader := ctrutil.NewReader(input)

	data := make([]byte, smdhSize)
	_, err := io.ReadFull(reader, data)
	if err != nil {
		return nil, fmt.Errorf("smdh: failed to read data: %w", err)
	}

	if string(data[:0x4]) != "SMDH" {
		return nil, fmt.Errorf("smdh: magic not found")
	}

	title := data[0x208:0x408]
	shortDescription := strings.TrimRight(ctrutil.DecodeUTF16(title[:0x80], binary.LittleEndian), "\x00")
	longDescription := strings.TrimRight(ctrutil.DecodeUTF16(title[0x80:0x180], binary.LittleEndian), "\x00")
	publisher := strings.TrimRight(ctrutil.DecodeUTF16(title[0x180:0x200], binary.LittleEndian), "\x00")

	regionFlags := binary.LittleEndian.Uint32(data[0x2018:])
	regions := make([]string, 0, 1)
	if regionFlags == 0x7fffffff {
		regions = append(regions, "World")
	} else {
		if regionFlags > 0x7f {
			return nil, fmt.Errorf("smdh: unexpected region flags: %s", Hex32(regionFlags))
		} else if (regionFlags&0x04)<<1 != regionFlags&0x08 {
			return nil, fmt.Errorf("smdh: region flags must be the same for Europe and Australia: %s", Hex32(regionFlags))
		}
		if regionFlags&0x01 != 0 {
			regions = append(regions, "Japan")
		}
		if regionFlags&0x02 != 0 {
			regions = append(regions, "North America")
		}
		if regionFlags&0x04 != 0 {
			regions = append(regions, "Europe")
		}
		if regionFlags&0x10 != 0 {
			regions = append(regions, "China")
		}
		if regionFlags&0x20 != 0 {
			regions = append(regions, "Korea")
		}
		if regionFlags&0x40 != 0 {
			regions = append(regions, "Taiwan")
		}
	}

	smallIcon := make([]byte, smallIconSize)
	copy(smallIcon, data[0x2040:0x2040+smallIconSize])

	largeIcon := make([]byte, largeIconSize)
	copy(largeIcon, data[0x24c0:0x24c0+largeIconSize])

	return &SMDH{
		Title: SMDHTitle{
			ShortDescription: shortDescription,
			LongDescription:  longDescription,
			Publisher:        publisher,
		},
		Regions:   regions,
		SmallIcon: smallIcon,
		LargeIcon: largeIcon,
	}, nil
}

// LargeImage decodes LargeIcon into a 48x48 image.
func (s *SMDH) LargeImage() (image.Image, error) {
	return DecodeIconImage(s.LargeIcon, largeIconWidth)
}

// SmallImage decodes SmallIcon into a 24x24 image.
func (s *SMDH) SmallImage() (image.Image, error) {
	return DecodeIconImage(s.SmallIcon, smallIconWidth)
}
