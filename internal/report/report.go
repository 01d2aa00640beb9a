package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/your-org/iris-knn/internal/learning"
)

// ErrNoEvaluations は分析するチューニング履歴がない場合に返されます。
var ErrNoEvaluations = errors.New("no evaluations to analyze")

// Row は1件の評価結果をレポート用に表します。
type Row struct {
	ID       uuid.UUID           `json:"id"`
	K        int                 `json:"k"`
	Distance string              `json:"distance"`
	Quality  decimal.NullDecimal `json:"quality_pct"`
	Error    string              `json:"error,omitempty"`
	TestedAt time.Time           `json:"tested_at"`
}

// Report はチューニング履歴の分析結果を保持します。
type Report struct {
	Dataset       string              `json:"dataset"`
	Evaluations   int                 `json:"evaluations"`
	Succeeded     int                 `json:"succeeded"`
	Failed        int                 `json:"failed"`
	Best          *Row                `json:"best,omitempty"`
	MeanQuality   decimal.NullDecimal `json:"mean_quality_pct"`
	QualityStdDev decimal.NullDecimal `json:"quality_stddev_pct"`
	FirstTestedAt time.Time           `json:"first_tested_at"`
	LastTestedAt  time.Time           `json:"last_tested_at"`
	Rows          []Row               `json:"rows"`

	// BestByDistance は距離関数ごとの最良の評価です。
	BestByDistance map[string]Row `json:"best_by_distance"`
}

// toPercent は品質の割合を小数点以下2桁のパーセントに変換します。
func toPercent(q float64) decimal.Decimal {
	return decimal.NewFromFloat(q).Mul(decimal.NewFromInt(100)).Round(2)
}

// better は a が b より優れているかを返します。品質が高い方、同品質なら k が小さい方が優れています。
func better(a, b learning.Evaluation) bool {
	if *a.Quality != *b.Quality {
		return *a.Quality > *b.Quality
	}
	return a.K < b.K
}

func newRow(ev learning.Evaluation) Row {
	row := Row{
		ID:       ev.ID,
		K:        ev.K,
		Distance: ev.Distance,
		Error:    ev.Error,
		TestedAt: ev.TestedAt,
	}
	if ev.Succeeded() {
		row.Quality = decimal.NewNullDecimal(toPercent(*ev.Quality))
	}
	return row
}

// AnalyzeTuning はチューニング履歴を分析してレポートを作成します。
// evs はチューニング順に並んでいる必要があり、変更されません。
func AnalyzeTuning(evs []learning.Evaluation) (Report, error) {
	if len(evs) == 0 {
		return Report{}, ErrNoEvaluations
	}

	r := Report{
		Dataset:        evs[0].Dataset,
		Evaluations:    len(evs),
		Rows:           make([]Row, 0, len(evs)),
		BestByDistance: make(map[string]Row),
	}

	var best *learning.Evaluation
	bestByDistance := make(map[string]learning.Evaluation)
	var qualities []float64
	for i := range evs {
		ev := evs[i]
		r.Rows = append(r.Rows, newRow(ev))

		if !ev.TestedAt.IsZero() {
			if r.FirstTestedAt.IsZero() || ev.TestedAt.Before(r.FirstTestedAt) {
				r.FirstTestedAt = ev.TestedAt
			}
			if ev.TestedAt.After(r.LastTestedAt) {
				r.LastTestedAt = ev.TestedAt
			}
		}

		if !ev.Succeeded() {
			r.Failed++
			continue
		}
		r.Succeeded++
		qualities = append(qualities, *ev.Quality)

		// 厳密な比較なので、完全に同じ評価では先に現れた方が残ります。
		if best == nil || better(ev, *best) {
			best = &evs[i]
		}
		if cur, ok := bestByDistance[ev.Distance]; !ok || better(ev, cur) {
			bestByDistance[ev.Distance] = ev
		}
	}

	if best != nil {
		row := newRow(*best)
		r.Best = &row
	}
	for name, ev := range bestByDistance {
		r.BestByDistance[name] = newRow(ev)
	}
	if len(qualities) > 0 {
		mean, std := stat.PopMeanStdDev(qualities, nil)
		r.MeanQuality = decimal.NewNullDecimal(toPercent(mean))
		r.QualityStdDev = decimal.NewNullDecimal(toPercent(std))
	}
	return r, nil
}

// Ranking は成功した評価を良い順に返します。
func (r Report) Ranking() []Row {
	ranked := make([]Row, 0, r.Succeeded)
	for _, row := range r.Rows {
		if row.Quality.Valid {
			ranked = append(ranked, row)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Quality.Decimal, ranked[j].Quality.Decimal
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return ranked[i].K < ranked[j].K
	})
	return ranked
}

// Pool は Service が使う pgxpool.Pool のメソッドのインターフェースです。
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Service はレポートの永続化を担当します。
type Service struct {
	db  Pool
	now func() time.Time
}

// NewService は新しいレポートサービスを作成します。
func NewService(db Pool) *Service {
	return &Service{db: db, now: time.Now}
}

// SaveTuningReport は分析レポートをデータベースに保存します。
func (s *Service) SaveTuningReport(ctx context.Context, r Report) error {
	var (
		bestID      *uuid.UUID
		bestK       *int
		bestQuality decimal.NullDecimal
		meanQuality decimal.NullDecimal
	)
	if r.Best != nil {
		id, k := r.Best.ID, r.Best.K
		bestID, bestK = &id, &k
		bestQuality = fractionOf(r.Best.Quality)
	}
	meanQuality = fractionOf(r.MeanQuality)

	query := `
        INSERT INTO tuning_reports (
            time, dataset, evaluations, failures, best_evaluation_id, best_k, best_quality, mean_quality
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        );
    `
	_, err := s.db.Exec(ctx, query,
		s.now().UTC(), r.Dataset, r.Evaluations, r.Failed, bestID, bestK, bestQuality, meanQuality,
	)
	if err != nil {
		return fmt.Errorf("failed to save tuning report for %s: %w", r.Dataset, err)
	}
	return nil
}

// fractionOf はパーセントを NUMERIC カラム用の 0..1 の割合に戻します。
func fractionOf(pct decimal.NullDecimal) decimal.NullDecimal {
	if !pct.Valid {
		return pct
	}
	return decimal.NewNullDecimal(pct.Decimal.Div(decimal.NewFromInt(100)))
}
