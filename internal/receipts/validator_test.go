package receipts

import (
	"context"
	"strings"
	"testing"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
)

func testRegistry() *Registry {
	return NewRegistry(logger.New(logger.ERROR))
}

func TestValidatorKeepsStoreTransactionID(t *testing.T) {
	registry := testRegistry()

	for _, platform := range []domain.Platform{domain.PlatformIOS, domain.PlatformAndroid} {
		v, ok := registry.ForPlatform(platform)
		if !ok {
			t.Fatalf("no validator for platform %s", platform)
		}

		result, err := v.Validate(context.Background(), domain.Receipt{
			Platform:              platform,
			ReceiptData:           "payload",
			ProductID:             "credits_small",
			ExternalTransactionID: "store-txn-42",
		})
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if !result.Valid {
			t.Fatalf("receipt unexpectedly rejected: %s", result.Error)
		}
		if result.ExternalTransactionID != "store-txn-42" {
			t.Errorf("canonical ID = %q, want store-provided ID", result.ExternalTransactionID)
		}
	}
}

func TestValidatorDerivesDeterministicID(t *testing.T) {
	registry := testRegistry()
	v, _ := registry.ForPlatform(domain.PlatformIOS)

	receipt := domain.Receipt{
		Platform:    domain.PlatformIOS,
		ReceiptData: "payload",
		ProductID:   "credits_small",
	}

	first, err := v.Validate(context.Background(), receipt)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	second, err := v.Validate(context.Background(), receipt)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if first.ExternalTransactionID == "" {
		t.Fatal("derived ID is empty")
	}
	if first.ExternalTransactionID != second.ExternalTransactionID {
		t.Error("derived ID must be deterministic for the same receipt")
	}
	if !strings.HasPrefix(first.ExternalTransactionID, "ios_") {
		t.Errorf("derived ID %q should carry the platform prefix", first.ExternalTransactionID)
	}
}

func TestValidatorRejectsEmptyReceipt(t *testing.T) {
	registry := testRegistry()
	v, _ := registry.ForPlatform(domain.PlatformAndroid)

	result, err := v.Validate(context.Background(), domain.Receipt{
		Platform:  domain.PlatformAndroid,
		ProductID: "credits_small",
	})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Error("empty receipt data must be rejected")
	}
}

func TestRegistryUnknownPlatform(t *testing.T) {
	if _, ok := testRegistry().ForPlatform(domain.Platform("web")); ok {
		t.Error("unknown platform must not resolve to a validator")
	}
}
