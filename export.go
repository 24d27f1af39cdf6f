package main

import (
	"github.com/xuri/excelize/v2"

	"github.com/mmdatafocus/mpms/models"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	exportSheet     = "明细"
)

var caseDetailHeader = []interface{}{
	"制程段别", "设备名称", "设备型号", "供应商", "合同编号", "单价", "币别", "数量", "总价",
	"首付款(%)", "发货款(%)", "装机完成款(%)", "验收款(%)", "验收后付款天数",
}

// caseDetailWorkbook lays out one row per case detail under a header row.
// vendors is aligned with details.
func caseDetailWorkbook(cs *models.Case, details []*models.CaseDetail, vendors []*models.Vendor) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellValue(exportSheet, "A1", cs.CaseName); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(exportSheet, "A2", &caseDetailHeader); err != nil {
		f.Close()
		return nil, err
	}

	for i, d := range details {
		vendorName := ""
		if i < len(vendors) && vendors[i] != nil {
			vendorName = vendors[i].Name
		}
		price, _ := d.Price.Float64()
		total, _ := d.Total().Float64()
		row := []interface{}{
			string(d.ProcessSection), d.EqName, d.EqType, vendorName, d.ContractCode,
			price, d.CurrencyUnit, d.Quantity, total,
			d.PayAfterContract.String(), d.PayBeforeDeliver.String(), d.PayAfterSetup.String(), d.PayAfterReceive.String(),
			d.PayDaysAfterReceive,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+3)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}
