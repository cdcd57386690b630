package report

import (
	"github.com/ReconfigureIO/hlsflow/models"
)

// Categories summarised by Summarise.
const (
	CategoryLUT      = "CLB LUTs"
	CategoryRegister = "CLB Registers"
	CategoryBlockRAM = "Block RAM Tile"
	CategoryURAM     = "URAM"
	CategoryDSP      = "DSPs"
)

// Summarise maps the report onto the utilisation summary stored with a run.
func Summarise(r *Report) models.Report {
	s := models.Report{
		ModuleName:      r.Header.Design,
		PartName:        r.Header.Device,
		LutSummary:      group(r, CategoryLUT),
		RegSummary:      group(r, CategoryRegister),
		BlockRamSummary: group(r, CategoryBlockRAM),
		UltraRamSummary: detail(r, CategoryURAM),
		DspBlockSummary: detail(r, CategoryDSP),
	}
	utils := []float32{
		s.LutSummary.Utilisation,
		s.RegSummary.Utilisation,
		s.BlockRamSummary.Utilisation,
		s.UltraRamSummary.Utilisation,
		s.DspBlockSummary.Utilisation,
	}
	var total float32
	for _, u := range utils {
		total += u
	}
	s.WeightedAverage = models.PartDetail{
		Description: "Average utilisation",
		Utilisation: total / float32(len(utils)),
	}
	return s
}

func partDetail(res Resource) models.PartDetail {
	return models.PartDetail{
		Description: res.Name,
		Used:        res.Used,
		Available:   res.Available,
		Utilisation: float32(res.Utilisation),
	}
}

func detail(r *Report, category string) models.PartDetail {
	res, _, ok := r.Resource(category)
	if !ok {
		return models.PartDetail{Description: category}
	}
	return partDetail(res)
}

func group(r *Report, category string) models.GroupSummary {
	res, children, ok := r.Resource(category)
	if !ok {
		return models.GroupSummary{Description: category}
	}
	g := models.GroupSummary{
		Description: res.Name,
		Used:        res.Used,
		Available:   res.Available,
		Utilisation: float32(res.Utilisation),
		Detail:      models.PartDetails{},
	}
	for _, c := range children {
		g.Detail[c.Name] = partDetail(c)
	}
	return g
}
