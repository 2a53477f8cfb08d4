package domain

type suggestionTier struct {
	above float64
	text  string
}

// suggestionTiers are checked in order; the first tier whose threshold the
// footprint exceeds wins, and the last tier (above -1) always matches.
var suggestionTiers = map[Sector][]suggestionTier{
	SectorElectricity: {
		{1000, "Critical: Your electricity emissions are very high. Immediately switch to renewable energy sources, install solar panels, and replace all appliances with energy-efficient models."},
		{700, "High usage detected. Consider switching to renewable energy providers, installing LED lighting throughout, and using smart thermostats to optimize heating/cooling."},
		{500, "Moderate emissions. Switch to energy-efficient appliances, unplug devices when not in use, and consider solar panels for your home."},
		{300, "Good performance. Further reduce by using energy monitoring systems and setting devices to eco-mode."},
		{-1, "Excellent! Your electricity footprint is low. Maintain these habits and consider sharing your energy-saving tips with others."},
	},
	SectorTransport: {
		{800, "Very high transport emissions. Consider switching to electric vehicles, carpooling, or relocating closer to work. Use public transport whenever possible."},
		{500, "High emissions detected. Try using public transport for daily commutes, consider hybrid vehicles, and combine multiple errands in one trip."},
		{300, "Moderate transport footprint. Increase use of public transport, cycle for short distances, or explore electric scooters/bikes."},
		{150, "Good transport habits. Further optimize by carpooling, using bike-sharing programs, and walking for nearby destinations."},
		{-1, "Outstanding! Your transport emissions are minimal. Keep using sustainable transport methods and inspire others to do the same."},
	},
	SectorManufacturing: {
		{2000, "Critical manufacturing emissions. Urgently implement circular economy principles, invest in clean technology, and conduct a full energy audit."},
		{1500, "Very high emissions. Optimize production processes, switch to renewable energy, implement waste recycling systems, and use sustainable raw materials."},
		{1000, "High manufacturing footprint. Reduce waste through lean manufacturing, invest in energy-efficient machinery, and explore carbon offset programs."},
		{600, "Moderate emissions. Continue improving with predictive maintenance to reduce energy waste and implement closed-loop water systems."},
		{-1, "Excellent manufacturing practices. Your emissions are low. Maintain efficiency and consider obtaining environmental certifications."},
	},
	SectorConstruction: {
		{1200, "Extremely high construction emissions. Use recycled materials, implement modular construction, switch to electric machinery, and minimize concrete usage."},
		{800, "High construction footprint. Use sustainable materials like bamboo and recycled steel, implement green building standards (LEED), and optimize site logistics."},
		{500, "Moderate emissions. Use locally-sourced materials to reduce transport emissions, implement efficient waste management, and use low-carbon concrete alternatives."},
		{300, "Good construction practices. Further reduce by using renewable energy on-site and implementing rainwater harvesting systems."},
		{-1, "Outstanding! Your construction emissions are well-controlled. Share your sustainable building practices as best practices in the industry."},
	},
	SectorAgriculture: {
		{1500, "Very high agricultural emissions. Implement regenerative agriculture, reduce livestock density, use precision farming, and minimize chemical fertilizer use."},
		{1000, "High emissions detected. Adopt crop rotation, use organic fertilizers, implement drip irrigation, and consider agroforestry practices."},
		{800, "Moderate agricultural footprint. Reduce by using cover crops, implementing no-till farming, and optimizing livestock feed for lower methane emissions."},
		{500, "Good sustainable practices. Further improve with composting, integrated pest management, and renewable energy for farm operations."},
		{-1, "Excellent sustainable agriculture! Your emissions are low. Continue these practices and consider carbon farming for additional benefits."},
	},
}

const defaultSuggestion = "No specific suggestion available for this category. General advice: Monitor your emissions regularly and look for opportunities to switch to renewable energy."

// Suggestion returns mitigation advice for a current footprint in kg CO₂.
func (s Sector) Suggestion(footprint float64) string {
	tiers, ok := suggestionTiers[s]
	if !ok {
		return defaultSuggestion
	}
	for _, t := range tiers {
		if footprint > t.above {
			return t.text
		}
	}
	return tiers[len(tiers)-1].text
}
