package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う（n×1 の行列）
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は教師あり学習モデルの基本インターフェース
type Estimator interface {
	Fitter
	Predictor
}

// ProbabilityPredictor は各クラスの確率を予測できるモデル
type ProbabilityPredictor interface {
	// PredictProba は n×クラス数 の確率行列を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Classifier は確率予測を備えた分類モデル
type Classifier interface {
	Estimator
	ProbabilityPredictor
}

// Resetter は学習済み状態を破棄できるモデル。
// 同じインスタンスを複数のfoldで使い回す場合に前のfoldの状態を消すために使う。
type Resetter interface {
	Reset()
}

// ---------------------------------------------------------------------------
// LightGBM系のブースティングモデルが持つ能力
// ---------------------------------------------------------------------------

// ImportanceGetter は種類を指定して特徴量重要度を返すモデル（"split", "gain" など）
type ImportanceGetter interface {
	GetFeatureImportance(importanceType string) []float64
}

// IterationPredictor はearly stoppingで得た最良イテレーションを使って予測できるモデル
type IterationPredictor interface {
	// BestIteration は最良イテレーションを返す。0以下は未設定を意味する
	BestIteration() int
	// PredictIteration は先頭 numIteration 本の木だけで予測する
	PredictIteration(X mat.Matrix, numIteration int) (mat.Matrix, error)
}

// ---------------------------------------------------------------------------
// CatBoost / scikit-learn系のモデルが持つ能力
// ---------------------------------------------------------------------------

// FeatureImportancer は学習後の特徴量重要度を返すモデル
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// Pool は学習データとカテゴリ特徴量の列番号をまとめたもの
type Pool struct {
	X           mat.Matrix
	Y           mat.Matrix
	CatFeatures []int
}

// PoolFitter はPoolを受け取って学習できるモデル
type PoolFitter interface {
	FitPool(pool *Pool) error
}
