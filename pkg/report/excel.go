// Package report 把分析结果导出为 Excel 工作簿
// 每类建议一个工作表，外加一个汇总页
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kasuganosora/sqladvisor/pkg/advisor"
	"github.com/kasuganosora/sqladvisor/pkg/query"
)

const (
	summarySheet  = "Summary"
	indexSheet    = "Index Suggestions"
	pushdownSheet = "Predicate Pushdown"
	joinSheet     = "Join Reordering"
)

// ExcelReport 分析结果的 Excel 导出器
type ExcelReport struct {
	result *advisor.OptimizationResult
}

// NewExcelReport 创建导出器
func NewExcelReport(result *advisor.OptimizationResult) *ExcelReport {
	return &ExcelReport{result: result}
}

// Build 构建工作簿
func (r *ExcelReport) Build() (*excelize.File, error) {
	if r.result == nil {
		return nil, query.NewValidationError("result", "analysis result must not be nil")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	r.writeSummary(f)

	if err := r.writeIndexSheet(f); err != nil {
		return nil, err
	}
	if err := r.writePushdownSheet(f); err != nil {
		return nil, err
	}
	if err := r.writeJoinSheet(f); err != nil {
		return nil, err
	}

	// 汇总页设为打开时的活动页
	index, err := f.GetSheetIndex(summarySheet)
	if err == nil && index >= 0 {
		f.SetActiveSheet(index)
	}
	return f, nil
}

// WriteFile 构建并保存到文件
func (r *ExcelReport) WriteFile(path string) error {
	f, err := r.Build()
	if err != nil {
		return err
	}
	return f.SaveAs(path)
}

// Write 构建并写入流
func (r *ExcelReport) Write(w io.Writer) error {
	f, err := r.Build()
	if err != nil {
		return err
	}
	return f.Write(w)
}

// writeSummary 填写汇总页
func (r *ExcelReport) writeSummary(f *excelize.File) {
	rows := [][]interface{}{
		{"Analysis ID", r.result.AnalysisID()},
		{"Analysis Time", r.result.AnalysisTime().String()},
		{"Index Suggestions", len(r.result.IndexSuggestions())},
		{"Pushdown Suggestions", len(r.result.PushdownSuggestions())},
		{"Join Reorder Suggestions", len(r.result.JoinReorderSuggestions())},
		{"Total Suggestions", r.result.TotalSuggestionCount()},
	}
	for i, row := range rows {
		writeRow(f, summarySheet, i+1, row)
	}
}

// writeIndexSheet 填写索引建议页
func (r *ExcelReport) writeIndexSheet(f *excelize.File) error {
	if _, err := f.NewSheet(indexSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", indexSheet, err)
	}

	writeRow(f, indexSheet, 1, []interface{}{
		"Table", "Columns", "Index Type", "Priority", "Selectivity", "Index Name", "Reason", "Create SQL",
	})
	for i, s := range r.result.IndexSuggestions() {
		writeRow(f, indexSheet, i+2, []interface{}{
			s.TableName,
			strings.Join(s.Columns, ", "),
			string(s.IndexType),
			string(s.Priority),
			s.EstimatedSelectivity,
			s.IndexName,
			s.Reason,
			s.CreateIndexSQL(),
		})
	}
	return nil
}

// writePushdownSheet 填写谓词下推页
func (r *ExcelReport) writePushdownSheet(f *excelize.File) error {
	if _, err := f.NewSheet(pushdownSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", pushdownSheet, err)
	}

	writeRow(f, pushdownSheet, 1, []interface{}{
		"Predicate", "Original Position", "Suggested Position", "Selectivity", "Type", "Reason",
	})
	for i, s := range r.result.PushdownSuggestions() {
		writeRow(f, pushdownSheet, i+2, []interface{}{
			s.Predicate,
			s.OriginalPosition,
			s.SuggestedPosition,
			s.EstimatedSelectivity,
			string(s.OptimizationType),
			s.Reason,
		})
	}
	return nil
}

// writeJoinSheet 填写连接重排页
func (r *ExcelReport) writeJoinSheet(f *excelize.File) error {
	if _, err := f.NewSheet(joinSheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", joinSheet, err)
	}

	writeRow(f, joinSheet, 1, []interface{}{
		"Original Sequence", "Suggested Sequence", "Improvement", "Priority", "Type", "Impact", "Reason",
	})
	for i, s := range r.result.JoinReorderSuggestions() {
		writeRow(f, joinSheet, i+2, []interface{}{
			strings.Join(s.OriginalSequence, " -> "),
			strings.Join(s.SuggestedSequence, " -> "),
			s.EstimatedImprovement,
			string(s.Priority),
			string(s.ReorderType),
			s.ExpectedImpact,
			s.Reason,
		})
	}
	return nil
}

// writeRow 从第 1 列起写一行
func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, cell, v)
	}
}
