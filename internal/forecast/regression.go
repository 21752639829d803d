package forecast

import "math"

// ridgeScale keeps the normal equations solvable when features are collinear,
// for example day of month and days since start inside a single month.
const ridgeScale = 1e-8

// linearModel is a multivariate least squares fit y = intercept + coef.x.
type linearModel struct {
	coef      []float64
	intercept float64
}

func (m linearModel) predict(x []float64) float64 {
	y := m.intercept
	for i, c := range m.coef {
		y += c * x[i]
	}
	return y
}

// fitLinear centers the features, solves the normal equations with a tiny
// ridge term and recovers the intercept from the means.
func fitLinear(x [][]float64, y []float64) linearModel {
	n := len(x)
	if n == 0 {
		return linearModel{}
	}
	p := len(x[0])

	xMean := make([]float64, p)
	yMean := 0.0
	for i := range x {
		for j := 0; j < p; j++ {
			xMean[j] += x[i][j]
		}
		yMean += y[i]
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean /= float64(n)

	// a is the p x (p+1) augmented matrix [XtX | Xty] on centered data.
	a := make([][]float64, p)
	for j := range a {
		a[j] = make([]float64, p+1)
	}
	for i := range x {
		dy := y[i] - yMean
		for j := 0; j < p; j++ {
			dj := x[i][j] - xMean[j]
			for k := 0; k < p; k++ {
				a[j][k] += dj * (x[i][k] - xMean[k])
			}
			a[j][p] += dj * dy
		}
	}

	trace := 0.0
	for j := 0; j < p; j++ {
		trace += a[j][j]
	}
	lambda := ridgeScale * math.Max(1, trace)
	for j := 0; j < p; j++ {
		a[j][j] += lambda
	}

	coef := solve(a)
	intercept := yMean
	for j, c := range coef {
		intercept -= c * xMean[j]
	}
	return linearModel{coef: coef, intercept: intercept}
}

// solve runs Gaussian elimination with partial pivoting on an augmented
// matrix, overwriting it. Singular columns get a zero coefficient.
func solve(a [][]float64) []float64 {
	p := len(a)
	for col := 0; col < p; col++ {
		pivot := col
		for row := col + 1; row < p; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		a[col], a[pivot] = a[pivot], a[col]
		if math.Abs(a[col][col]) < 1e-12 {
			continue
		}
		for row := col + 1; row < p; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k <= p; k++ {
				a[row][k] -= factor * a[col][k]
			}
		}
	}

	coef := make([]float64, p)
	for row := p - 1; row >= 0; row-- {
		if math.Abs(a[row][row]) < 1e-12 {
			continue
		}
		sum := a[row][p]
		for k := row + 1; k < p; k++ {
			sum -= a[row][k] * coef[k]
		}
		coef[row] = sum / a[row][row]
	}
	return coef
}
