package engine

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/shaiso/etlflows/internal/domain"
)

// Clean — проекция пяти полей RepoStats в CleanedRecord.
func Clean(stats domain.RepoStats) domain.CleanedRecord {
	return domain.CleanedRecord{
		Name:            stats.Name,
		FullName:        stats.FullName,
		StargazersCount: stats.StargazersCount,
		WatchersCount:   stats.WatchersCount,
		ForksCount:      stats.ForksCount,
	}
}

// Aggregate вычисляет AggregateRecord на момент now.
//
// При одинаковых clean и now результат всегда одинаковый.
// Переполнение суммы возвращается как *TransformError.
func Aggregate(clean domain.CleanedRecord, now time.Time) (domain.AggregateRecord, error) {
	total, err := sumCounts(clean.StargazersCount, clean.WatchersCount, clean.ForksCount)
	if err != nil {
		return domain.AggregateRecord{}, &TransformError{Op: "total_engagement", Err: err}
	}

	return domain.AggregateRecord{
		RepositoryName:  clean.Name,
		TotalEngagement: total,
		Metrics: domain.Metrics{
			TotalStars:    clean.StargazersCount,
			TotalWatchers: clean.WatchersCount,
			TotalForks:    clean.ForksCount,
		},
		EngagementRatio: EngagementRatio(clean.StargazersCount, clean.WatchersCount),
		Timestamp:       now.UTC().Round(0),
	}, nil
}

// EngagementRatio возвращает stars / (watchers + 1), округлённое
// до двух знаков (половина вверх).
//
// Округление делается в целых числах, поэтому 2.675 даёт 2.68,
// а не 2.67, как при округлении float64.
func EngagementRatio(stars, watchers int64) float64 {
	d := new(big.Int).Add(big.NewInt(watchers), big.NewInt(1))

	// сотые = floor((200*stars + d) / 2d)
	num := new(big.Int).Mul(big.NewInt(stars), big.NewInt(200))
	num.Add(num, d)
	den := new(big.Int).Mul(d, big.NewInt(2))
	hundredths := new(big.Int).Quo(num, den)

	f, _ := new(big.Rat).SetFrac(hundredths, big.NewInt(100)).Float64()
	return f
}

func sumCounts(values ...int64) (int64, error) {
	var total int64
	for _, v := range values {
		if v > 0 && total > math.MaxInt64-v {
			return 0, fmt.Errorf("%w: sum exceeds int64", ErrOverflow)
		}
		total += v
	}
	return total, nil
}
