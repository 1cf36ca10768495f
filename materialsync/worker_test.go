package materialsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
	"github.com/sirupsen/logrus"
)

func TestErrorCodeClassification(t *testing.T) {
	adjErr := &AdjustmentError{Op: "inventoryAdjustQuantities", UserErrors: []shopify.UserError{{Message: "nope"}}}
	if got := errorCode(fmt.Errorf("apply: %w", adjErr)); got != "adjustment_rejected" {
		t.Errorf("adjustment error classified as %q", got)
	}
	if got := errorCode(&shopify.TransportError{StatusCode: 500}); got != "transport_error" {
		t.Errorf("transport error classified as %q", got)
	}
	if got := errorCode(errors.New("boom")); got != "sync_failed" {
		t.Errorf("generic error classified as %q", got)
	}
}

// RunOnce with no database and no Redis must still complete a pass; the
// run record and lock are both optional infrastructure.
func TestRunOnceWithoutInfrastructure(t *testing.T) {
	api := &fakeAPI{t: t, handle: func(query string, variables map[string]any) (string, error) {
		if strings.Contains(query, "metafield(namespace") {
			return `{"shop": {"metafield": null}}`, nil
		}
		return "", fmt.Errorf("unexpected query: %s", query)
	}}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	w := &Worker{engine: newTestEngine(api), logger: logger, interval: 30 * time.Second}
	w.RunOnce(context.Background(), "system")

	if got := api.callCount("metafield(namespace"); got != 1 {
		t.Errorf("relations read %d times, want 1", got)
	}
}
