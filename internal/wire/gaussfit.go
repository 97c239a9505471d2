package wire

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Gaussian1D is the four-parameter profile model fitted to vertical
// intensity slices: Base + Amp * exp(-(x-Mean)^2 / (2*Sigma^2)).
type Gaussian1D struct {
	Amp   float64
	Mean  float64
	Sigma float64
	Base  float64
}

// Eval evaluates the model at x.
func (g Gaussian1D) Eval(x float64) float64 {
	d := x - g.Mean
	return g.Base + g.Amp*math.Exp(-d*d/(2*g.Sigma*g.Sigma))
}

// FWHM returns the full width at half maximum, 2*sqrt(2*ln 2)*sigma.
func (g Gaussian1D) FWHM() float64 {
	return 2.3548200450309493 * math.Abs(g.Sigma)
}

// FitGaussian1D fits the model to (xs, ys) by damped Gauss-Newton least
// squares starting from init. It reports false when the iteration fails
// to converge or produces a degenerate sigma.
func FitGaussian1D(xs, ys []float64, init Gaussian1D) (Gaussian1D, bool) {
	n := len(xs)
	if n < 4 || len(ys) != n {
		return init, false
	}

	g := init
	if g.Sigma == 0 {
		g.Sigma = 1
	}
	lambda := 1e-3

	prevSSE := sse(xs, ys, g)
	for iter := 0; iter < 60; iter++ {
		jac := mat.NewDense(n, 4, nil)
		res := mat.NewVecDense(n, nil)
		for i := 0; i < n; i++ {
			d := xs[i] - g.Mean
			e := math.Exp(-d * d / (2 * g.Sigma * g.Sigma))
			// Partial derivatives w.r.t. amp, mean, sigma, base.
			jac.Set(i, 0, e)
			jac.Set(i, 1, g.Amp*e*d/(g.Sigma*g.Sigma))
			jac.Set(i, 2, g.Amp*e*d*d/math.Pow(g.Sigma, 3))
			jac.Set(i, 3, 1)
			res.SetVec(i, ys[i]-g.Eval(xs[i]))
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		for i := 0; i < 4; i++ {
			jtj.Set(i, i, jtj.At(i, i)*(1+lambda)+1e-12)
		}
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), res)

		var delta mat.VecDense
		if err := delta.SolveVec(&jtj, &jtr); err != nil {
			return g, false
		}

		trial := Gaussian1D{
			Amp:   g.Amp + delta.AtVec(0),
			Mean:  g.Mean + delta.AtVec(1),
			Sigma: g.Sigma + delta.AtVec(2),
			Base:  g.Base + delta.AtVec(3),
		}
		trialSSE := sse(xs, ys, trial)
		if math.IsNaN(trialSSE) || trialSSE > prevSSE {
			// Reject the step and damp harder.
			lambda *= 10
			if lambda > 1e8 {
				return g, false
			}
			continue
		}

		step := math.Abs(delta.AtVec(0)) + math.Abs(delta.AtVec(1)) +
			math.Abs(delta.AtVec(2)) + math.Abs(delta.AtVec(3))
		g = trial
		prevSSE = trialSSE
		lambda = math.Max(lambda/10, 1e-9)
		if step < 1e-6 {
			break
		}
	}

	if math.IsNaN(g.Sigma) || math.Abs(g.Sigma) < 1e-3 || math.Abs(g.Sigma) > float64(n) {
		return g, false
	}
	return g, true
}

func sse(xs, ys []float64, g Gaussian1D) float64 {
	var s float64
	for i := range xs {
		r := ys[i] - g.Eval(xs[i])
		s += r * r
	}
	return s
}
