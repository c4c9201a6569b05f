// Command seed-db loads a development data set: catalog products from a JSON
// file, a few coupons and banners, the standard CMS pages, and an admin API
// key. Every write is an upsert so the command can be re-run.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velvetlane/storefront/internal/domain/auth"
	"github.com/velvetlane/storefront/internal/domain/banner"
	"github.com/velvetlane/storefront/internal/domain/content"
	"github.com/velvetlane/storefront/internal/domain/coupon"
	"github.com/velvetlane/storefront/internal/domain/product"
	"github.com/velvetlane/storefront/internal/repository"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Stock       int             `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SHOP_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, repository.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedBanners(ctx, repository.NewBannerRepository(pool)); err != nil {
		return errors.Wrap(err, "seed banners")
	}
	if err := seedPages(ctx, repository.NewPageRepository(pool)); err != nil {
		return errors.Wrap(err, "seed pages")
	}
	if err := seedAPIKey(ctx, repository.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, in := range products {
		p := product.Product{
			ID:          in.ID,
			Name:        in.Name,
			Description: in.Description,
			Price:       in.Price,
			Category:    in.Category,
			Images:      in.Images,
			Stock:       in.Stock,
		}
		if err := repo.Upsert(ctx, &p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *repository.CouponRepository) error {
	slog.Info("seeding coupons")

	coupons := []coupon.Coupon{
		{
			Code:        "SAVE10",
			Type:        coupon.DiscountPercentage,
			Value:       decimal.NewFromInt(10),
			MinAmount:   decimal.NewFromInt(50),
			Active:      true,
			Description: "10% off orders over $50",
		},
		{
			Code:               "WELCOME15",
			Type:               coupon.DiscountPercentage,
			Value:              decimal.NewFromInt(15),
			FirstTimeBuyerOnly: true,
			Active:             true,
			Description:        "Welcome: 15% off your first order",
		},
		{
			Code:        "TENBUCKS",
			Type:        coupon.DiscountFixed,
			Value:       decimal.NewFromInt(10),
			MinAmount:   decimal.NewFromInt(50),
			UserLimit:   1,
			Active:      true,
			Description: "$10 off orders over $50, once per customer",
		},
	}

	for i := range coupons {
		c := &coupons[i]
		if err := c.CheckInvariants(); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("description", c.Description))
	}

	return nil
}

func seedBanners(ctx context.Context, repo *repository.BannerRepository) error {
	slog.Info("seeding banners")

	now := time.Now().UTC().Truncate(time.Hour)
	banners := []banner.Banner{
		{
			ID:       "seed-summer-sale",
			Title:    "Summer Sale",
			Subtitle: "Up to 50% off selected items",
			Surface:  banner.SurfaceHero,
			Position: "top",
			Priority: 8,
			Active:   true,
			StartsAt: now,
			EndsAt:   now.AddDate(0, 1, 0),
			Rules: banner.DisplayRules{
				ShowOnPages: []string{"/", "/shop"},
			},
			Content: banner.Content{
				Text:        "Summer Sale: up to 50% off",
				ButtonLabel: "Shop now",
				ButtonURL:   "/shop",
			},
		},
		{
			ID:       "seed-newsletter",
			Title:    "Join the newsletter",
			Surface:  banner.SurfacePopup,
			Position: "center",
			Priority: 3,
			Active:   true,
			StartsAt: now,
			EndsAt:   now.AddDate(1, 0, 0),
			Audience: banner.Audience{
				UserTypes: []string{"guest"},
			},
			Rules: banner.DisplayRules{
				ShowOnPages:  []string{"*"},
				HideOnPages:  []string{"/checkout"},
				DelaySeconds: 5,
				MaxDisplays:  3,
			},
			Content: banner.Content{
				Text:        "Get 10% off your first order",
				ButtonLabel: "Sign up",
				ButtonURL:   "/newsletter",
			},
		},
	}

	for i := range banners {
		b := &banners[i]
		if err := b.CheckInvariants(); err != nil {
			return errors.Wrapf(err, "banner %s", b.ID)
		}
		if err := repo.Upsert(ctx, b); err != nil {
			return errors.Wrapf(err, "upsert banner %s", b.ID)
		}

		slog.Info("upserted banner", slog.String("id", b.ID), slog.String("title", b.Title))
	}

	return nil
}

func seedPages(ctx context.Context, repo *repository.PageRepository) error {
	slog.Info("seeding pages")

	pages := []content.Page{
		{Slug: "about", Title: "About us", Body: "We sell things we love.", Published: true},
		{Slug: "shipping", Title: "Shipping & returns", Body: "Orders ship within 2 business days.", Published: true},
		{Slug: "privacy", Title: "Privacy policy", Body: "Draft.", Published: false},
	}

	for i := range pages {
		p := &pages[i]
		if err := p.CheckInvariants(); err != nil {
			return errors.Wrapf(err, "page %s", p.Slug)
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert page %s", p.Slug)
		}

		slog.Info("upserted page", slog.String("slug", p.Slug))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if err := repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:      "default-admin",
		KeyHash: keyHash,
		Name:    "Default admin key",
		Role:    auth.RoleAdmin,
	}); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", "default-admin"))

	return nil
}
