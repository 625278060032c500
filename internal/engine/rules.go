package engine

import "github.com/shaiso/etlflows/internal/domain"

// RuleMinStars — имя правила минимального количества звёзд.
const RuleMinStars = "min_stars"

// Rule — бизнес-правило, применяемое после проверки схемы.
type Rule interface {
	// Name возвращает имя правила для сообщений и метрик.
	Name() string

	// Check возвращает nil, если правило выполнено.
	Check(stats domain.RepoStats) *RuleError
}

// MinValueRule требует, чтобы числовое поле было не меньше порога.
type MinValueRule struct {
	RuleName  string
	Field     string
	Threshold int64
	Value     func(domain.RepoStats) int64
}

// Name реализует Rule.
func (r MinValueRule) Name() string {
	return r.RuleName
}

// Check реализует Rule.
func (r MinValueRule) Check(stats domain.RepoStats) *RuleError {
	actual := r.Value(stats)
	if actual >= r.Threshold {
		return nil
	}
	return &RuleError{
		Rule:      r.RuleName,
		Field:     r.Field,
		Threshold: r.Threshold,
		Actual:    actual,
	}
}

// MinStars — правило stargazers_count >= n.
func MinStars(n int64) Rule {
	return MinValueRule{
		RuleName:  RuleMinStars,
		Field:     domain.FieldStargazersCount,
		Threshold: n,
		Value:     func(s domain.RepoStats) int64 { return s.StargazersCount },
	}
}

// CheckRules применяет все правила по порядку и собирает все нарушения.
// Возвращает RuleViolations или nil.
func CheckRules(stats domain.RepoStats, rules ...Rule) error {
	var violations RuleViolations
	for _, rule := range rules {
		if v := rule.Check(stats); v != nil {
			violations = append(violations, v)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	return violations
}

// ValidateRules проверяет единственное правило min_stars.
// Возвращает *RuleError или nil.
func ValidateRules(stats domain.RepoStats, minStars int64) error {
	if v := MinStars(minStars).Check(stats); v != nil {
		return v
	}
	return nil
}
