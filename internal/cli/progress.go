package cli

import (
	"github.com/cheggaaa/pb/v3"
	"github.com/rs/zerolog/log"
)

// pbProgress implements ctrcia.ProgressReporter over a cheggaaa/pb bar.
type pbProgress struct {
	bar *pb.ProgressBar
}

func newProgress(total int64) *pbProgress {
	bar := pb.Full.Start64(total)
	bar.Set(pb.Bytes, true)
	return &pbProgress{bar: bar}
}

func (p *pbProgress) Advance(n uint64) {
	p.bar.Add64(int64(n))
}

func (p *pbProgress) Warn(message string) {
	log.Warn().Msg(message)
}

func (p *pbProgress) finish() {
	p.bar.Finish()
}
