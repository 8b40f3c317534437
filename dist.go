package trafgen

// dist.go holds the distributions from which on/off period lengths are
// drawn, and the rounding applied to computed simulation times

import (
	"math"

	"github.com/iti/rngstream"
	"github.com/pkg/errors"
)

// PeriodDist describes the distribution of a period length
type PeriodDist struct {
	Model string  `json:"model" yaml:"model"` // "const" or "exp"
	Mean  float64 `json:"mean" yaml:"mean"`   // seconds
}

// ConstPeriod is a PeriodDist that always yields mean
func ConstPeriod(mean float64) PeriodDist {
	return PeriodDist{Model: "const", Mean: mean}
}

// Validate checks the model name and that the mean is usable.  zeroOK admits a zero mean
func (pd PeriodDist) Validate(zeroOK bool) error {
	switch pd.Model {
	case "const", "constant", "exp", "expon", "exponential", "":
	default:
		return errors.Wrapf(ErrInvalidParam, "unknown period model %q", pd.Model)
	}
	if math.IsNaN(pd.Mean) || math.IsInf(pd.Mean, 0) || pd.Mean < 0.0 || (pd.Mean == 0.0 && !zeroOK) {
		return errors.Wrapf(ErrInvalidParam, "period mean %v", pd.Mean)
	}
	return nil
}

// Sample draws a period length.  The constant model (the default) ignores rng
func (pd PeriodDist) Sample(rng *rngstream.RngStream) float64 {
	params := []float64{pd.Mean}
	switch pd.Model {
	case "exp", "expon", "exponential":
		if pd.Mean == 0.0 {
			return 0.0
		}
		return roundFloat(sampleExpRV(rng.RandU01(), params), rdigits)
	default:
		return sampleConst(0.0, params)
	}
}

var rdigits uint = 15

// round computed simulation time to avoid non-sensical comparisons
// induced by rounding error
func roundFloat(val float64, precision uint) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}

// expRV returns a sample of a exponentially distributed random number
func expRV(u01, rate float64) float64 {
	return -math.Log(1.0-u01) / rate
}

// sampleExpRV draws an exponential period whose mean is params[0]
func sampleExpRV(u01 float64, params []float64) float64 {
	return expRV(u01, 1.0/params[0])
}

// sampleConst returns the period params[0]
func sampleConst(u01 float64, params []float64) float64 {
	return params[0]
}
