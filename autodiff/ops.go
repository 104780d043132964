package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// normEps keeps RowNorm differentiable at the origin.
const normEps = 1e-12

func mustSameDims(op string, a, b *Variable) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic(fmt.Sprintf("autodiff: %s shape mismatch %dx%d vs %dx%d", op, ar, ac, br, bc))
	}
}

// Gather selects rows of src by index, as an embedding lookup does.
func (t *Tape) Gather(src *Variable, ids []int) *Variable {
	_, c := src.Dims()
	out := mat.NewDense(len(ids), c, nil)
	for i, id := range ids {
		out.SetRow(i, src.Value.RawRowView(id))
	}

	v := t.record(out, src)
	v.backward = func() {
		if !src.requiresGrad {
			return
		}
		if src.Grad == nil {
			r, c := src.Dims()
			src.Grad = mat.NewDense(r, c, nil)
		}
		for i, id := range ids {
			dst := src.Grad.RawRowView(id)
			g := v.Grad.RawRowView(i)
			for j := range dst {
				dst[j] += g[j]
			}
		}
	}
	return v
}

// MatMul returns a·b.
func (t *Tape) MatMul(a, b *Variable) *Variable {
	var out mat.Dense
	out.Mul(a.Value, b.Value)

	v := t.record(&out, a, b)
	v.backward = func() {
		if a.requiresGrad {
			var da mat.Dense
			da.Mul(v.Grad, b.Value.T())
			accumulate(a, &da)
		}
		if b.requiresGrad {
			var db mat.Dense
			db.Mul(a.Value.T(), v.Grad)
			accumulate(b, &db)
		}
	}
	return v
}

// AddRow adds the 1×c row vector bias to every row of a.
func (t *Tape) AddRow(a, bias *Variable) *Variable {
	r, c := a.Dims()
	if br, bc := bias.Dims(); br != 1 || bc != c {
		panic(fmt.Sprintf("autodiff: AddRow bias %dx%d does not broadcast over %dx%d", br, bc, r, c))
	}
	out := mat.NewDense(r, c, nil)
	b := bias.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		src := a.Value.RawRowView(i)
		dst := out.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] + b[j]
		}
	}

	v := t.record(out, a, bias)
	v.backward = func() {
		accumulate(a, v.Grad)
		if bias.requiresGrad {
			sums := mat.NewDense(1, c, nil)
			row := sums.RawRowView(0)
			for i := 0; i < r; i++ {
				g := v.Grad.RawRowView(i)
				for j := range row {
					row[j] += g[j]
				}
			}
			accumulate(bias, sums)
		}
	}
	return v
}

// Add returns a+b.
func (t *Tape) Add(a, b *Variable) *Variable {
	mustSameDims("Add", a, b)
	var out mat.Dense
	out.Add(a.Value, b.Value)

	v := t.record(&out, a, b)
	v.backward = func() {
		accumulate(a, v.Grad)
		accumulate(b, v.Grad)
	}
	return v
}

// Sub returns a−b.
func (t *Tape) Sub(a, b *Variable) *Variable {
	mustSameDims("Sub", a, b)
	var out mat.Dense
	out.Sub(a.Value, b.Value)

	v := t.record(&out, a, b)
	v.backward = func() {
		accumulate(a, v.Grad)
		if b.requiresGrad {
			var neg mat.Dense
			neg.Scale(-1, v.Grad)
			accumulate(b, &neg)
		}
	}
	return v
}

// MulElem returns the element-wise product a∘b.
func (t *Tape) MulElem(a, b *Variable) *Variable {
	mustSameDims("MulElem", a, b)
	var out mat.Dense
	out.MulElem(a.Value, b.Value)

	v := t.record(&out, a, b)
	v.backward = func() {
		if a.requiresGrad {
			var da mat.Dense
			da.MulElem(v.Grad, b.Value)
			accumulate(a, &da)
		}
		if b.requiresGrad {
			var db mat.Dense
			db.MulElem(v.Grad, a.Value)
			accumulate(b, &db)
		}
	}
	return v
}

// Scale returns s·a.
func (t *Tape) Scale(s float64, a *Variable) *Variable {
	var out mat.Dense
	out.Scale(s, a.Value)

	v := t.record(&out, a)
	v.backward = func() {
		var da mat.Dense
		da.Scale(s, v.Grad)
		accumulate(a, &da)
	}
	return v
}

// AddScalar returns a with s added to every element.
func (t *Tape) AddScalar(a *Variable, s float64) *Variable {
	var out mat.Dense
	out.Apply(func(_, _ int, x float64) float64 { return x + s }, a.Value)

	v := t.record(&out, a)
	v.backward = func() {
		accumulate(a, v.Grad)
	}
	return v
}

// unary applies f element-wise; df receives the input and output values.
func (t *Tape) unary(a *Variable, f func(x float64) float64, df func(x, y float64) float64) *Variable {
	var out mat.Dense
	out.Apply(func(_, _ int, x float64) float64 { return f(x) }, a.Value)

	v := t.record(&out, a)
	v.backward = func() {
		if !a.requiresGrad {
			return
		}
		var da mat.Dense
		da.Apply(func(i, j int, g float64) float64 {
			return g * df(a.Value.At(i, j), out.At(i, j))
		}, v.Grad)
		accumulate(a, &da)
	}
	return v
}

// ReLU returns max(0, a).
func (t *Tape) ReLU(a *Variable) *Variable {
	return t.unary(a,
		func(x float64) float64 { return math.Max(0, x) },
		func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		})
}

// Sigmoid returns 1/(1+e^-a).
func (t *Tape) Sigmoid(a *Variable) *Variable {
	return t.unary(a,
		func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		func(_, y float64) float64 { return y * (1 - y) })
}

// Tanh returns tanh(a).
func (t *Tape) Tanh(a *Variable) *Variable {
	return t.unary(a,
		math.Tanh,
		func(_, y float64) float64 { return 1 - y*y })
}

// Concat joins variables with the same row count along columns.
func (t *Tape) Concat(parts ...*Variable) *Variable {
	if len(parts) == 0 {
		panic("autodiff: Concat of nothing")
	}
	rows, _ := parts[0].Dims()
	offsets := make([]int, len(parts)+1)
	for i, p := range parts {
		r, c := p.Dims()
		if r != rows {
			panic(fmt.Sprintf("autodiff: Concat row mismatch %d vs %d", r, rows))
		}
		offsets[i+1] = offsets[i] + c
	}

	out := mat.NewDense(rows, offsets[len(parts)], nil)
	for i := 0; i < rows; i++ {
		dst := out.RawRowView(i)
		for k, p := range parts {
			copy(dst[offsets[k]:offsets[k+1]], p.Value.RawRowView(i))
		}
	}

	v := t.record(out, parts...)
	v.backward = func() {
		for k, p := range parts {
			if !p.requiresGrad {
				continue
			}
			accumulate(p, v.Grad.Slice(0, rows, offsets[k], offsets[k+1]))
		}
	}
	return v
}

// Slice returns columns [from, to) of a.
func (t *Tape) Slice(a *Variable, from, to int) *Variable {
	r, _ := a.Dims()
	out := mat.DenseCopyOf(a.Value.Slice(0, r, from, to))

	v := t.record(out, a)
	v.backward = func() {
		if !a.requiresGrad {
			return
		}
		rr, cc := a.Dims()
		full := mat.NewDense(rr, cc, nil)
		full.Slice(0, rr, from, to).(*mat.Dense).Copy(v.Grad)
		accumulate(a, full)
	}
	return v
}

// RowNorm returns the r×1 column of Euclidean row norms of a.
func (t *Tape) RowNorm(a *Variable) *Variable {
	r, _ := a.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		var s float64
		for _, x := range a.Value.RawRowView(i) {
			s += x * x
		}
		out.Set(i, 0, math.Sqrt(s+normEps))
	}

	v := t.record(out, a)
	v.backward = func() {
		if !a.requiresGrad {
			return
		}
		var da mat.Dense
		da.Apply(func(i, j int, x float64) float64 {
			return v.Grad.At(i, 0) * x / out.At(i, 0)
		}, a.Value)
		accumulate(a, &da)
	}
	return v
}

// Sum reduces a to the 1×1 sum of its elements.
func (t *Tape) Sum(a *Variable) *Variable {
	out := mat.NewDense(1, 1, []float64{mat.Sum(a.Value)})

	v := t.record(out, a)
	v.backward = func() {
		if !a.requiresGrad {
			return
		}
		g := v.Grad.At(0, 0)
		var da mat.Dense
		da.Apply(func(_, _ int, _ float64) float64 { return g }, a.Value)
		accumulate(a, &da)
	}
	return v
}

// Mean reduces a to the 1×1 mean of its elements.
func (t *Tape) Mean(a *Variable) *Variable {
	r, c := a.Dims()
	n := float64(r * c)
	return t.Scale(1/n, t.Sum(a))
}

// SumAll adds 1×1 variables together.
func (t *Tape) SumAll(terms ...*Variable) *Variable {
	if len(terms) == 0 {
		return t.Constant(mat.NewDense(1, 1, nil))
	}
	total := terms[0]
	for _, term := range terms[1:] {
		total = t.Add(total, term)
	}
	return total
}
