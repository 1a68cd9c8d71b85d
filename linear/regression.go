// Package linear provides a least-squares baseline regressor used to
// exercise the cross-validation driver.
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/core/model"
	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator
	Weights      *mat.VecDense // 重み（係数）
	Intercept    float64       // 切片
	FitIntercept bool
	// Alpha は L2 正則化の強さ。0 で通常の最小二乗
	Alpha float64
}

// Option は LinearRegression の設定を変更する
type Option func(*LinearRegression)

// WithFitIntercept は切片を学習するかどうかを設定する
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithAlpha は L2 正則化の強さを設定する
func WithAlpha(alpha float64) Option {
	return func(lr *LinearRegression) {
		lr.Alpha = alpha
	}
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 正規方程式 (X^T X + αI) w = X^T y を解く
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	if X == nil || y == nil {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	offset := 0
	if lr.FitIntercept {
		offset = 1
	}

	// 切片項のために X に 1 の列を追加
	design := mat.NewDense(r, c+offset, nil)
	for i := 0; i < r; i++ {
		if lr.FitIntercept {
			design.Set(i, 0, 1.0)
		}
		for j := 0; j < c; j++ {
			design.Set(i, j+offset, X.At(i, j))
		}
	}

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	// 切片は正則化しない
	for j := offset; j < c+offset; j++ {
		xtx.Set(j, j, xtx.At(j, j)+lr.Alpha)
	}

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}
	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var coef mat.VecDense
	if err := coef.SolveVec(&xtx, &xty); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	lr.Intercept = 0
	if lr.FitIntercept {
		lr.Intercept = coef.AtVec(0)
	}
	lr.Weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, coef.AtVec(j+offset))
	}

	lr.SetFitted(r, c)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.CheckPredict("LinearRegression", "Predict", X); err != nil {
		return nil, err
	}

	r, _ := X.Dims()

	// y = X * weights + intercept
	predictions := mat.NewVecDense(r, nil)
	predictions.MulVec(X, lr.Weights)
	for i := 0; i < r; i++ {
		predictions.SetVec(i, predictions.AtVec(i)+lr.Intercept)
	}
	return predictions, nil
}

// FeatureImportances は係数の絶対値を特徴量重要度として返す
func (lr *LinearRegression) FeatureImportances() []float64 {
	if !lr.IsFitted() {
		return nil
	}
	importances := make([]float64, lr.Weights.Len())
	for j := range importances {
		importances[j] = math.Abs(lr.Weights.AtVec(j))
	}
	return importances
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.Weights)
}

// Reset は学習結果を破棄する
func (lr *LinearRegression) Reset() {
	lr.BaseEstimator.Reset()
	lr.Weights = nil
	lr.Intercept = 0
}
