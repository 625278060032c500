package domain

import "time"

// RawRecord — JSON-объект в том виде, в котором его вернул источник.
// Структура не гарантируется; до валидации он проходит через engine.Flatten.
type RawRecord map[string]any

// Имена обязательных полей RepoStats в исходном JSON.
// Порядок важен: схема проверяет поля именно в нём.
const (
	FieldName            = "name"
	FieldFullName        = "full_name"
	FieldStargazersCount = "stargazers_count"
	FieldWatchersCount   = "watchers_count"
	FieldForksCount      = "forks_count"
)

// RequiredFields — обязательные поля в порядке проверки.
var RequiredFields = []string{
	FieldName,
	FieldFullName,
	FieldStargazersCount,
	FieldWatchersCount,
	FieldForksCount,
}

// RepoStats — статистика репозитория, прошедшая проверку схемы.
//
// Значение RepoStats существует только если все пять полей присутствуют
// в исходном JSON и имеют правильный тип. Частично заполненных значений
// не бывает: их создаёт только engine.ValidateSchema.
type RepoStats struct {
	// Name — короткое имя репозитория, непустое.
	Name string `json:"name" jsonschema:"minLength=1"`

	// FullName — "owner/name", непустое.
	FullName string `json:"full_name" jsonschema:"minLength=1"`

	// StargazersCount — количество звёзд, >= 0.
	StargazersCount int64 `json:"stargazers_count" jsonschema:"minimum=0"`

	// WatchersCount — количество наблюдателей, >= 0.
	WatchersCount int64 `json:"watchers_count" jsonschema:"minimum=0"`

	// ForksCount — количество форков, >= 0.
	ForksCount int64 `json:"forks_count" jsonschema:"minimum=0"`
}

// CleanedRecord — дословная проекция пяти полей RepoStats.
// Существует только после успешной валидации.
type CleanedRecord struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	StargazersCount int64  `json:"stargazers_count"`
	WatchersCount   int64  `json:"watchers_count"`
	ForksCount      int64  `json:"forks_count"`
}

// Metrics — прямые копии счётчиков в агрегате.
type Metrics struct {
	TotalStars    int64 `json:"total_stars"`
	TotalWatchers int64 `json:"total_watchers"`
	TotalForks    int64 `json:"total_forks"`
}

// AggregateRecord — производная запись, вычисляется один раз из CleanedRecord.
type AggregateRecord struct {
	// RepositoryName — копия CleanedRecord.Name.
	RepositoryName string `json:"repository_name"`

	// TotalEngagement — stars + watchers + forks.
	TotalEngagement int64 `json:"total_engagement"`

	// Metrics — счётчики без изменений.
	Metrics Metrics `json:"metrics"`

	// EngagementRatio — round(stars / (watchers + 1), 2).
	EngagementRatio float64 `json:"engagement_ratio"`

	// Timestamp — время агрегации (UTC, ISO-8601 при сериализации).
	Timestamp time.Time `json:"timestamp"`
}

// Equal сравнивает записи, включая момент времени (без учёта location).
func (a AggregateRecord) Equal(b AggregateRecord) bool {
	return a.RepositoryName == b.RepositoryName &&
		a.TotalEngagement == b.TotalEngagement &&
		a.Metrics == b.Metrics &&
		a.EngagementRatio == b.EngagementRatio &&
		a.Timestamp.Equal(b.Timestamp)
}
