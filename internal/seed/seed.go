package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	productdomain "github.com/erinfolamirukayat/theweddingplace/internal/product/domain"
	productrepo "github.com/erinfolamirukayat/theweddingplace/internal/product/repository"
	"gorm.io/gorm"
)

// EnsureStarterCatalog seeds a browsable product catalog on first boot so
// a fresh deployment has registry items to offer. Prices are in kobo. An
// already populated catalog is left untouched.
func EnsureStarterCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	products := productrepo.Provide()
	return db.Transaction(func(tx *gorm.DB) error {
		count, err := products.Count(ctx, tx)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		for _, p := range starterCatalog {
			product := productdomain.Product{
				ID:          node.Generate(),
				Name:        p.name,
				Description: p.description,
				Price:       p.price,
				ImageURL:    p.imageURL,
				Category:    p.category,
				CreatedAt:   now,
			}
			if err := products.Insert(ctx, tx, &product); err != nil {
				return err
			}
		}
		return nil
	})
}

var starterCatalog = []struct {
	name        string
	description string
	price       int64
	imageURL    string
	category    string
}{
	{
		name:        "Stand Mixer",
		description: "Heavy-duty stand mixer with dough hook, whisk and paddle attachments.",
		price:       25_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/stand-mixer.jpg",
		category:    "Kitchen",
	},
	{
		name:        "Gas Cooker",
		description: "Four-burner gas cooker with oven and grill.",
		price:       45_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/gas-cooker.jpg",
		category:    "Kitchen",
	},
	{
		name:        "Refrigerator",
		description: "Double-door frost-free refrigerator, 350 litres.",
		price:       60_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/refrigerator.jpg",
		category:    "Appliances",
	},
	{
		name:        "Washing Machine",
		description: "Front-loading automatic washing machine, 8kg capacity.",
		price:       38_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/washing-machine.jpg",
		category:    "Appliances",
	},
	{
		name:        "Bedding Set",
		description: "King-size duvet set with four pillowcases in Egyptian cotton.",
		price:       8_500_000,
		imageURL:    "https://images.theweddingplace.ng/products/bedding-set.jpg",
		category:    "Bedroom",
	},
	{
		name:        "Dinnerware Set",
		description: "24-piece porcelain dinnerware set for six.",
		price:       12_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/dinnerware-set.jpg",
		category:    "Dining",
	},
	{
		name:        "Smart TV",
		description: "55-inch 4K smart television.",
		price:       55_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/smart-tv.jpg",
		category:    "Living Room",
	},
	{
		name:        "Honeymoon Fund",
		description: "Contribute toward the couple's honeymoon getaway.",
		price:       100_000_000,
		imageURL:    "https://images.theweddingplace.ng/products/honeymoon.jpg",
		category:    "Experiences",
	},
}
