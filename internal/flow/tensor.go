package flow

import "gonum.org/v1/gonum/mat"

// StructureTensor is the symmetric 2×2 matrix of summed gradient products.
// The off-diagonal is held once in a mat.SymDense, so At(0, 1) and At(1, 0)
// always return the same stored value.
type StructureTensor struct {
	a *mat.SymDense
}

func newStructureTensor() StructureTensor {
	return StructureTensor{a: mat.NewSymDense(2, nil)}
}

func (t StructureTensor) accumulate(ix, iy float64) {
	t.a.SetSym(0, 0, t.a.At(0, 0)+ix*ix)
	t.a.SetSym(0, 1, t.a.At(0, 1)+ix*iy)
	t.a.SetSym(1, 1, t.a.At(1, 1)+iy*iy)
}

// At returns the tensor entry at row i, column j.
func (t StructureTensor) At(i, j int) float64 {
	if t.a == nil {
		return 0
	}
	return t.a.At(i, j)
}

// Det returns A00·A11 − A01·A10.
func (t StructureTensor) Det() float64 {
	return t.At(0, 0)*t.At(1, 1) - t.At(0, 1)*t.At(1, 0)
}
