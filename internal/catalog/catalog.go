package catalog

// CreditPackage описание пакета кредитов для разовой покупки
type CreditPackage struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Credits    int64  `json:"credits"`
	PriceCents int    `json:"price_cents"` // Цена в центах USD (499 = $4.99)
	Popular    bool   `json:"popular"`
}

// PlanInterval период плана подписки
type PlanInterval string

const (
	IntervalMonthly PlanInterval = "monthly"
	IntervalYearly  PlanInterval = "yearly"
)

// Benefits набор преимуществ уровня подписки
type Benefits struct {
	MonthlyCredits  int64    `json:"monthly_credits"`
	Priority        bool     `json:"priority"`
	ExclusiveStyles bool     `json:"exclusive_styles"`
	NoAds           bool     `json:"no_ads"`
	Features        []string `json:"features"`
}

// Plan описание плана подписки
type Plan struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Interval   PlanInterval `json:"interval"`
	PriceCents int          `json:"price_cents"`
	Benefits   Benefits     `json:"benefits"`
}

// Packages возвращает все доступные пакеты кредитов
func Packages() []CreditPackage {
	return []CreditPackage{
		{
			ID:         "credits_small",
			Name:       "Starter Pack",
			Credits:    50,
			PriceCents: 299,
		},
		{
			ID:         "credits_medium",
			Name:       "Creator Pack",
			Credits:    150,
			PriceCents: 699,
			Popular:    true,
		},
		{
			ID:         "credits_large",
			Name:       "Studio Pack",
			Credits:    500,
			PriceCents: 1999,
		},
	}
}

// PackageByID возвращает пакет кредитов по ID продукта
func PackageByID(id string) (CreditPackage, bool) {
	for _, p := range Packages() {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPackage{}, false
}

// Plans возвращает все доступные планы подписки
func Plans() []Plan {
	return []Plan{
		{
			ID:         "premium_monthly",
			Name:       "Premium Monthly",
			Interval:   IntervalMonthly,
			PriceCents: 999,
			Benefits: Benefits{
				MonthlyCredits:  100,
				Priority:        true,
				ExclusiveStyles: true,
				NoAds:           true,
				Features:        []string{"hd_export", "batch_generation", "priority_queue"},
			},
		},
		{
			ID:         "premium_yearly",
			Name:       "Premium Yearly",
			Interval:   IntervalYearly,
			PriceCents: 7999,
			Benefits: Benefits{
				MonthlyCredits:  100,
				Priority:        true,
				ExclusiveStyles: true,
				NoAds:           true,
				Features:        []string{"hd_export", "batch_generation", "priority_queue", "early_access"},
			},
		},
	}
}

// PlanByID возвращает план подписки по ID
func PlanByID(id string) (Plan, bool) {
	for _, p := range Plans() {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// FreeBenefits возвращает фиксированный набор преимуществ бесплатного уровня
func FreeBenefits() Benefits {
	return Benefits{
		MonthlyCredits:  10,
		Priority:        false,
		ExclusiveStyles: false,
		NoAds:           false,
		Features:        []string{"standard_styles"},
	}
}
