// Package pcapreplay drives a classifier program over a pcap capture and
// optionally writes the rewritten frames to a new capture.
package pcapreplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/netaccel/direct-path/internal/dpath/common/log"
	"github.com/netaccel/direct-path/internal/dpath/services/classifier"
)

// ErrLinkType is returned for captures that are not Ethernet.
var ErrLinkType = errors.New("pcapreplay: capture is not ethernet")

// Report summarises a replay.
type Report struct {
	Packets  uint64
	Bytes    uint64
	Modified uint64
	Marked   uint64
	Reasons  map[string]uint64
}

func (r *Report) record(n int, v classifier.Verdict) {
	r.Packets++
	r.Bytes += uint64(n)
	if v.Modified {
		r.Modified++
	}
	if v.Marked {
		r.Marked++
	}
	r.Reasons[v.Reason.String()]++
}

// Fields renders the report for structured logging.
func (r Report) Fields() map[string]any {
	f := map[string]any{
		"packets":  r.Packets,
		"bytes":    r.Bytes,
		"modified": r.Modified,
		"marked":   r.Marked,
	}
	for reason, n := range r.Reasons {
		f["reason_"+reason] = n
	}
	return f
}

// Replayer reads frames from a capture file, runs each through a program
// and writes the (possibly rewritten) frames to an output capture.
type Replayer struct {
	in     string
	out    string
	logger log.Logger
}

// NewReplayer creates a replayer for the capture at in. out may be empty,
// in which case frames are processed but not written.
func NewReplayer(in, out string, logger log.Logger) *Replayer {
	return &Replayer{in: in, out: out, logger: logger}
}

// Run replays the whole capture. It stops early with ctx.Err() when the
// context is cancelled between packets.
func (p *Replayer) Run(ctx context.Context, prog classifier.Program) (Report, error) {
	src, err := os.Open(p.in)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open capture %s: %w", p.in, err)
	}
	defer src.Close()

	var dst io.Writer
	if p.out != "" {
		f, err := os.Create(p.out)
		if err != nil {
			return Report{}, fmt.Errorf("failed to create capture %s: %w", p.out, err)
		}
		defer f.Close()
		dst = f
	}

	p.logger.Info(map[string]any{"in": p.in, "out": p.out}, "Replay starting")
	rep, err := Replay(ctx, src, dst, prog)
	fields := rep.Fields()
	if err != nil {
		fields["error"] = err.Error()
		p.logger.Warn(fields, "Replay stopped")
		return rep, err
	}
	p.logger.Info(fields, "Replay finished")
	return rep, nil
}

// Replay processes every packet of the pcap stream r with prog. When w is
// non-nil each frame is written to it after processing, with the original
// capture info.
func Replay(ctx context.Context, r io.Reader, w io.Writer, prog classifier.Program) (Report, error) {
	rep := Report{Reasons: make(map[string]uint64)}

	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return rep, fmt.Errorf("failed to read capture header: %w", err)
	}
	if reader.LinkType() != layers.LinkTypeEthernet {
		return rep, fmt.Errorf("%w: %s", ErrLinkType, reader.LinkType())
	}

	var writer *pcapgo.Writer
	if w != nil {
		writer = pcapgo.NewWriter(w)
		if err := writer.WriteFileHeader(reader.Snaplen(), layers.LinkTypeEthernet); err != nil {
			return rep, fmt.Errorf("failed to write capture header: %w", err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		data, ci, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			return rep, fmt.Errorf("failed to read packet %d: %w", rep.Packets+1, err)
		}

		var meta classifier.Meta
		rep.record(len(data), prog.Process(data, &meta))

		if writer != nil {
			if err := writer.WritePacket(gopacket.CaptureInfo{
				Timestamp:      ci.Timestamp,
				CaptureLength:  len(data),
				Length:         ci.Length,
				InterfaceIndex: ci.InterfaceIndex,
			}, data); err != nil {
				return rep, fmt.Errorf("failed to write packet %d: %w", rep.Packets, err)
			}
		}
	}
}
