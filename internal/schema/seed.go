package schema

// Seed returns the initial site data written when no store exists yet.
func Seed() SiteConfiguration {
	return SiteConfiguration{
		Company: Company{
			Name:        "Brightline Heating & Cooling",
			LegalName:   "Brightline Services Ltd",
			Tagline:     "Comfortable homes, all year round",
			Description: "Family-run heating, cooling and ventilation engineers serving the county since 2009.",
			FoundedYear: "2009",
			Logo:        None[AssetRef](),
		},
		Contact: Contact{
			Phone:    "01632 960 123",
			Email:    "hello@brightline.example",
			WhatsApp: None[string](),
			Address: Address{
				Street:   "14 Foundry Lane",
				City:     "Oxford",
				Region:   "Oxfordshire",
				Postcode: "OX1 2AB",
				Country:  "United Kingdom",
			},
			Hours:         "Mon-Fri 8:00-18:00, Sat 9:00-13:00",
			ServiceRadius: 25,
			AreasServed:   []string{"Oxford", "Abingdon", "Witney"},
		},
		Branding: Branding{
			Colors: Palette{
				Primary:    "#0b4f6c",
				Secondary:  "#01baef",
				Accent:     "#f9a03f",
				Background: "#ffffff",
				Text:       "#1f2933",
			},
			Fonts: Fonts{Heading: "Poppins", Body: "Inter"},
		},
		Proof: Proof{
			Accreditations: []Accreditation{
				{Name: "Gas Safe Registered", URL: "https://www.gassaferegister.co.uk"},
			},
			Rating: Rating{AverageRating: 4.9, ReviewCount: 212, Source: "Google"},
		},
		Social: Social{
			Facebook:  Some("https://facebook.com/brightline"),
			Instagram: None[string](),
			LinkedIn:  None[string](),
			X:         None[string](),
			YouTube:   None[string](),
			TikTok:    None[string](),
		},
		SEO: SEO{
			Title:       "Brightline Heating & Cooling | Boilers, Heat Pumps & Air Conditioning",
			Description: "Boiler installation, servicing and heat pump specialists across Oxfordshire.",
			Keywords:    []string{"boiler installation", "heat pumps", "air conditioning"},
		},
		Integrations: Integrations{ReviewsEmbed: None[string]()},
		Navigation: []NavLink{
			{Label: "Services", Href: "/services"},
			{Label: "Areas", Href: "/areas"},
			{Label: "Contact", Href: "/contact"},
		},
		Header: Header{CTALabel: "Get a quote", PhoneLabel: "Call us"},
		Footer: Footer{Tagline: "Gas Safe registered engineers", Copyright: "Brightline Services Ltd"},
		Home: Home{
			Hero: Hero{
				Heading:          "Heating and cooling you can rely on",
				Subheading:       "Fixed-price installs, same-week servicing.",
				PrimaryCTA:       "Book a survey",
				SecondaryCTA:     "Our services",
				BackgroundImages: []AssetRef{},
				BackgroundImage:  None[AssetRef](),
				BackgroundVideo:  None[AssetRef](),
			},
			Services: HomeServices{Heading: "What we do", Intro: "From annual servicing to full system design.", FeaturedCount: 3},
			Process: Process{
				Heading: "How it works",
				Steps: []ProcessStep{
					{Title: "Survey", Description: "We visit and measure up."},
					{Title: "Quote", Description: "A fixed price within 48 hours."},
					{Title: "Install", Description: "Fitted and commissioned by our own engineers."},
				},
			},
			Gallery: Gallery{Heading: "Recent work", Items: []GalleryItem{}},
			Reviews: Reviews{
				Heading: "What customers say",
				Items: []Review{
					{Author: "Sam P.", Location: "Abingdon", Text: "Tidy, quick and fairly priced.", Rating: 5},
				},
			},
			Areas: HomeAreas{Heading: "Where we work", Intro: "Covering 25 miles around Oxford."},
			CTA:   CallToAction{Heading: "Ready when you are", Body: "Tell us what you need and we will call back today.", ButtonLabel: "Request a callback"},
		},
		Services: []Service{
			{
				Slug:       "boiler-installation",
				Name:       "Boiler installation",
				ShortDesc:  "A-rated boilers fitted in a day.",
				LongDesc:   "We remove your old boiler, flush the system and fit a new condensing boiler with a manufacturer warranty.",
				Features:   []string{"Up to 12 year warranty", "System flush included"},
				PriceRange: Some("£1,950 - £3,400"),
				Gallery:    []AssetRef{},
				FAQs:       []FAQ{{Q: "How long does it take?", A: "Most swaps are finished in one day."}},
			},
			{
				Slug:       "heat-pumps",
				Name:       "Air source heat pumps",
				ShortDesc:  "Low-carbon heating with grant support.",
				LongDesc:   "MCS-certified design and installation, including the Boiler Upgrade Scheme paperwork.",
				Features:   []string{"Heat loss survey", "Grant applications handled"},
				PriceRange: None[string](),
				Gallery:    []AssetRef{},
				FAQs:       []FAQ{},
			},
		},
		Areas: []Area{
			{Slug: "oxford", Name: "Oxford", Postcodes: []string{"OX1", "OX2", "OX3", "OX4"}},
			{Slug: "abingdon", Name: "Abingdon", Postcodes: []string{"OX13", "OX14"}},
		},
	}
}
