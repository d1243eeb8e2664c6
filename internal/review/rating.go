package review

import (
	"fmt"
	"time"

	reviewdb "github.com/nao1215/bookverse/internal/review/db"
)

// 評価戦略の名前。クエリパラメータstrategyで指定する。
const (
	// StrategyAverage は単純平均による評価戦略。
	StrategyAverage = "averageRatingStrategy"
	// StrategyWeighted は投稿日からの経過日数で重み付けする評価戦略。
	StrategyWeighted = "weightedRatingStrategy"
)

// ratingFunc はレビュー一覧から平均評価を算出する関数。
type ratingFunc func(reviews []reviewdb.Review, now time.Time) float64

// strategyFor は戦略名に対応する算出関数を返す。
// 未知の戦略名はエラーにする。
func strategyFor(name string) (ratingFunc, error) {
	switch name {
	case StrategyAverage:
		return averageRating, nil
	case StrategyWeighted:
		return weightedRating, nil
	default:
		return nil, fmt.Errorf("未知の評価戦略です: %s", name)
	}
}

// averageRating はレビューの単純平均を算出する。
// レビューがない場合は0を返す。
func averageRating(reviews []reviewdb.Review, _ time.Time) float64 {
	if len(reviews) == 0 {
		return 0
	}

	var sum float64
	for _, r := range reviews {
		sum += float64(r.Rating)
	}
	return sum / float64(len(reviews))
}

// weightedRating は古いレビューほど影響が小さくなる加重平均を算出する。
// 重みは 1/(1+経過日数*0.01) で、経過日数は投稿日時からの丸一日単位。
// レビューがない場合は0を返す。
func weightedRating(reviews []reviewdb.Review, now time.Time) float64 {
	if len(reviews) == 0 {
		return 0
	}

	var weightedSum, weightTotal float64
	for _, r := range reviews {
		daysOld := int64(now.Sub(r.CreatedAt).Hours() / 24)
		if daysOld < 0 {
			daysOld = 0
		}
		weight := 1.0 / (1.0 + float64(daysOld)*0.01)
		weightedSum += weight * float64(r.Rating)
		weightTotal += weight
	}
	return weightedSum / weightTotal
}
