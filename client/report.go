package client

import (
	"fmt"
	"slices"
	"time"

	log "github.com/sirupsen/logrus"
)

// Report collects the results of one round, TCP first, each role by index.
type Report struct {
	Params  Params
	Results []Result
}

// NewReport sorts results into report order.
func NewReport(p Params, results []Result) *Report {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b Result) int {
		if a.Role != b.Role {
			if a.Role == RoleTCP {
				return -1
			}
			return 1
		}
		return a.Index - b.Index
	})
	return &Report{Params: p, Results: sorted}
}

// RoleSummary aggregates the results of one role.
type RoleSummary struct {
	Role      Role
	Count     int
	Completed int
	Short     int
	Failed    int
	Bytes     uint64
	// Mean throughput of the transfers that did not fail, bits/s.
	MeanThroughput float64
	// Mean loss over UDP transfers that did not fail.
	MeanLoss float64
}

// Summary returns one RoleSummary per role, TCP first.
func (r *Report) Summary() []RoleSummary {
	sums := []RoleSummary{{Role: RoleTCP}, {Role: RoleUDP}}
	for _, res := range r.Results {
		s := &sums[0]
		if res.Role == RoleUDP {
			s = &sums[1]
		}
		s.Count++
		s.Bytes += res.Bytes
		switch res.Status {
		case StatusCompleted:
			s.Completed++
		case StatusShort:
			s.Short++
		case StatusFailed:
			s.Failed++
			continue
		}
		s.MeanThroughput += res.Throughput()
		s.MeanLoss += res.Loss
	}
	for i := range sums {
		if ok := sums[i].Completed + sums[i].Short; ok > 0 {
			sums[i].MeanThroughput /= float64(ok)
			sums[i].MeanLoss /= float64(ok)
		}
	}
	return sums
}

// Log writes one line per transfer and one per role.
func (r *Report) Log(logger log.FieldLogger) {
	for _, res := range r.Results {
		entry := logger.WithFields(log.Fields{
			"proto":  res.Role,
			"conn":   res.Index,
			"status": res.Status.String(),
		})

		switch {
		case res.Status == StatusFailed:
			entry.WithError(res.Err).Errorf("%s transfer #%d failed after %s, %s received",
				res.Role, res.Index, fmtDuration(res.Elapsed), FormatBytes(res.Bytes))
		case res.Role == RoleUDP:
			msg := fmt.Sprintf("UDP transfer #%d finished, total time: %s, total speed: %s, percentage of packets received successfully: %.2f%%",
				res.Index, fmtDuration(res.Elapsed), FormatBitrate(res.Throughput()), 100-res.Loss)
			if res.Status == StatusShort {
				entry.Warn(msg)
			} else {
				entry.Info(msg)
			}
		default:
			msg := fmt.Sprintf("TCP transfer #%d finished, total time: %s, total speed: %s",
				res.Index, fmtDuration(res.Elapsed), FormatBitrate(res.Throughput()))
			if res.Status == StatusShort {
				entry.Warnf("%s (%s of %s)", msg, FormatBytes(res.Bytes), FormatBytes(r.Params.FileSize))
			} else {
				entry.Info(msg)
			}
		}
	}

	for _, s := range r.Summary() {
		if s.Count == 0 {
			continue
		}
		logger.Infof("%s: %d/%d completed, %d short, %d failed, mean %s",
			s.Role, s.Completed, s.Count, s.Short, s.Failed, FormatBitrate(s.MeanThroughput))
	}
}

// FormatBytes renders n with SI prefixes.
func FormatBytes(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d B", n)
	}
	return formatSI(float64(n), "B", 1)
}

// FormatBitrate renders bits per second with SI prefixes.
func FormatBitrate(bps float64) string {
	return formatSI(bps, "bit/s", 2)
}

func formatSI(v float64, unit string, prec int) string {
	const prefixes = "kMGTPE"
	prefix := ""
	for i := 0; v >= 1000 && i < len(prefixes); i++ {
		v /= 1000
		prefix = prefixes[i : i+1]
	}
	return fmt.Sprintf("%.*f %s%s", prec, v, prefix, unit)
}

func fmtDuration(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
