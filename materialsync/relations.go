package materialsync

import (
	"context"
	"errors"
	"fmt"

	"bitbucket.org/mmdatafocus/materialsync_backend/utils"
	"github.com/sirupsen/logrus"
)

var relationsQuery = fmt.Sprintf(`
	query {
		shop {
			metafield(namespace: %q, key: %q) {
				value
			}
		}
	}`, MetafieldNamespace, MetafieldKey)

const shopIDQuery = `
	{
		shop { id }
	}`

const metafieldsSetMutation = `
	mutation SetMetafields($metafields: [MetafieldsSetInput!]!) {
		metafieldsSet(metafields: $metafields) {
			metafields {
				id
				key
				namespace
				type
				value
			}
			userErrors {
				field
				message
			}
		}
	}`

// GetRelations reads the material mapping from the shop metafield. A
// missing or unparseable value degrades to an empty mapping so a broken
// config turns the sync into a no-op instead of crashing the scheduler.
func (e *Engine) GetRelations(ctx context.Context) Relations {
	var out struct {
		Shop struct {
			Metafield *struct {
				Value string `json:"value"`
			} `json:"metafield"`
		} `json:"shop"`
	}
	if err := e.api.Execute(ctx, relationsQuery, nil, &out); err != nil {
		e.logger.WithFields(logrus.Fields{"module": "materialsync"}).Warnf("relations read failed: %v", err)
		return Relations{}
	}
	if out.Shop.Metafield == nil || out.Shop.Metafield.Value == "" {
		return Relations{}
	}

	var rel Relations
	if err := utils.UnmarshalFromJSON([]byte(out.Shop.Metafield.Value), &rel); err != nil {
		e.logger.WithFields(logrus.Fields{"module": "materialsync"}).Warnf("relations metafield is not valid json: %v", err)
		return Relations{}
	}
	return NormalizeRelations(rel)
}

// SaveRelations replaces the stored mapping. The caller validates the
// mapping at the HTTP boundary; this revalidates before writing.
func (e *Engine) SaveRelations(ctx context.Context, rel Relations) error {
	rel = NormalizeRelations(rel)
	if err := ValidateRelations(rel); err != nil {
		return err
	}

	var shopOut struct {
		Shop struct {
			ID string `json:"id"`
		} `json:"shop"`
	}
	if err := e.api.Execute(ctx, shopIDQuery, nil, &shopOut); err != nil {
		return err
	}
	if shopOut.Shop.ID == "" {
		return errors.New("unable to determine shop id")
	}

	value, err := utils.MarshalToJSON(rel)
	if err != nil {
		return err
	}

	var out struct {
		MetafieldsSet *struct {
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"metafieldsSet"`
	}
	variables := map[string]any{
		"metafields": []map[string]any{
			{
				"ownerId":   shopOut.Shop.ID,
				"namespace": MetafieldNamespace,
				"key":       MetafieldKey,
				"type":      "json",
				"value":     value,
			},
		},
	}
	if err := e.api.Execute(ctx, metafieldsSetMutation, variables, &out); err != nil {
		return err
	}
	if out.MetafieldsSet == nil {
		return errors.New("missing metafieldsSet response")
	}
	if len(out.MetafieldsSet.UserErrors) > 0 {
		msgs, _ := utils.MarshalToJSON(out.MetafieldsSet.UserErrors)
		return fmt.Errorf("metafieldsSet rejected: %s", msgs)
	}
	return nil
}
