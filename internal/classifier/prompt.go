package classifier

// Category is one of the buckets the model is asked to choose from.
type Category string

const (
	CategorySellable   Category = "sellable"
	CategoryRepairable Category = "repairable"
	CategoryRecyclable Category = "recyclable"
	CategoryHazardous  Category = "hazardous"
)

// Priority lists the categories from most to least preferred when more than one applies.
var Priority = []Category{
	CategorySellable,
	CategoryRepairable,
	CategoryRecyclable,
	CategoryHazardous,
}

// Prompt is sent unchanged with every image.
const Prompt = "Classify this e-waste image into one of these categories: repairable, sellable, recyclable, or hazardous. " +
	"Prioritize in this order: " +
	"1) Sellable if the item seems functional or has valuable parts. " +
	"2) Repairable if it shows signs of minor damage that can be fixed. " +
	"3) Recyclable if the item is non-functional but contains materials that can be reused. " +
	"4) Hazardous if it contains dangerous substances like lead or mercury. " +
	"Provide a brief explanation for the chosen category."
