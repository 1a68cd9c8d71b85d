package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

func (s EstimatorState) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "not_fitted"
}

// BaseEstimator は学習状態と学習時の特徴量数を保持する。
// 各モデルに埋め込んで使う。fold ごとに新しいモデルを作るため、
// 状態は一度の Fit の結果だけを表す。
type BaseEstimator struct {
	state     EstimatorState
	nFeatures int
	nFitted   int
}

func (e *BaseEstimator) State() EstimatorState {
	return e.state
}

func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// NFeaturesIn は Fit で見た特徴量数。未学習なら 0
func (e *BaseEstimator) NFeaturesIn() int {
	return e.nFeatures
}

// NSamplesFitted は Fit で見たサンプル数。未学習なら 0
func (e *BaseEstimator) NSamplesFitted() int {
	return e.nFitted
}

// SetFitted は学習済み状態にし、学習データの形状を記録する
func (e *BaseEstimator) SetFitted(nSamples, nFeatures int) {
	e.state = Fitted
	e.nFitted = nSamples
	e.nFeatures = nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	*e = BaseEstimator{}
}

// CheckPredict は予測前の共通チェック。
// 未学習なら NotFittedError、列数が学習時と違えば DimensionError を返す。
func (e *BaseEstimator) CheckPredict(modelName, method string, X mat.Matrix) error {
	if !e.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	if X == nil {
		return errors.NewValueError(modelName+"."+method, "X must not be nil")
	}
	if _, c := X.Dims(); c != e.nFeatures {
		return errors.NewDimensionError(modelName+"."+method, e.nFeatures, c, 1)
	}
	return nil
}
