package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/cvfold/pkg/errors"
)

// logLossEps は log(0) を避けるための確率のクリップ幅
const logLossEps = 1e-15

// Accuracy は正解率を計算する。予測値は0.5で二値化せず、そのままラベルとして比較する。
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// BinaryLogLoss は二値分類の対数損失を計算する。
// yPred は陽性クラスの確率で、[eps, 1-eps] にクリップされる。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkVectors("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), logLossEps), 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// AUC はROC曲線下面積を計算する。
// 同じスコアの正例・負例の組は0.5として数える。
// 片方のクラスしか存在しない場合は0.5を返す。
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	n, err := checkVectors("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	if err := checkBinary("AUC", yTrue); err != nil {
		return 0, err
	}

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, n)
	nPos := 0
	for i := range pairs {
		pairs[i] = pair{score: yScore.AtVec(i), label: yTrue.AtVec(i)}
		if pairs[i].label == 1 {
			nPos++
		}
	}
	nNeg := n - nPos
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	// 同順位には平均順位を与える（Mann-Whitney U）
	var rankSumPos float64
	for i := 0; i < n; {
		j := i
		for j < n && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSumPos += avgRank
			}
		}
		i = j
	}

	u := rankSumPos - float64(nPos)*float64(nPos+1)/2
	return u / (float64(nPos) * float64(nNeg)), nil
}

func checkBinary(op string, y *mat.VecDense) error {
	for i := 0; i < y.Len(); i++ {
		if v := y.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "yTrue must contain only 0 and 1")
		}
	}
	return nil
}
