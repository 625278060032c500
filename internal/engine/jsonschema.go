package engine

import (
	"github.com/invopop/jsonschema"

	"github.com/shaiso/etlflows/internal/domain"
)

// RepoStatsSchema возвращает JSON Schema для RepoStats.
//
// Лишние поля разрешены: ответ GitHub содержит десятки других ключей.
func RepoStatsSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(&domain.RepoStats{})
	schema.Title = "RepoStats"
	schema.Description = "GitHub repository statistics accepted by the ETL pipeline"
	return schema
}
