// Package output renders simulation and sweep results for external tools:
// CSV grids and series, compressed JSONL series streams and binary layer
// snapshots.
package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/talgya/bilayer-epidemic/internal/engine"
)

// FormatParameters renders the parameters of a run or sweep as a file stem,
// e.g. "L1-beta=0.1_gamma=0.2_..._NLINKS=10".
func FormatParameters(p engine.Params, runs int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "L1-beta=%s_gamma=%s_mu=%s_kappa=%s_max_infected_time=%s",
		num(p.Epidemic.Beta), num(p.Epidemic.Gamma), num(p.Epidemic.Mu),
		num(p.Epidemic.Kappa), num(p.Epidemic.MaxInfectedTime))
	fmt.Fprintf(&b, "_L2-q=%d_p=%s_epsilon=%s_xi=%s_n=%d_lambda=%s_delta=%s",
		p.QVoter.Q, num(p.QVoter.P), num(p.QVoter.Epsilon),
		num(p.SocialMedia.Xi), p.SocialMedia.Every,
		num(p.Awareness.Lambda), num(p.Awareness.Delta))
	fmt.Fprintf(&b, "_NRUNS=%d_NSTEPS=%d_NAGENTS=%d_NLINKS=%d",
		runs, p.Steps, p.Network.Agents, p.Network.AdditionalLinks)
	return b.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
