package model

import "github.com/rotisserie/eris"

// Error taxonomy. Rows never fail with these; they are surfaced as flags on
// the QuoteResult and wrapped by the packages that detect them.
var (
	ErrUnsupportedIncoterm = eris.New("unsupported incoterm")
	ErrUnresolvedLocation  = eris.New("unresolved location")
	ErrNoPortCandidates    = eris.New("no port candidates")
	ErrMissingRate         = eris.New("missing rate")
	ErrMissingTransitTime  = eris.New("missing transit time")
)
