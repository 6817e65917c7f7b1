package dto

import "github.com/google/uuid"

// RenameFileRequest переименование файла.
type RenameFileRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

// MoveFileRequest перенос в другую папку.
type MoveFileRequest struct {
	Folder string `json:"folder" binding:"required,max=500"`
}

// WatermarkRequest параметры водяного знака. Нужен текст или логотип.
type WatermarkRequest struct {
	Text       string     `json:"text" binding:"max=200"`
	LogoFileID *uuid.UUID `json:"logo_file_id"`
	Position   string     `json:"position"`
	Color      string     `json:"color"`
	Opacity    *float64   `json:"opacity" binding:"omitempty,gte=0,lte=1"`
	Margin     *int       `json:"margin" binding:"omitempty,gte=0,lte=500"`
	Scale      int        `json:"scale" binding:"gte=0,lte=20"`
	Tiled      bool       `json:"tiled"`
	WidthRatio float64    `json:"width_ratio" binding:"gte=0,lte=1"`
	Format     string     `json:"format" binding:"omitempty,oneof=png jpeg"`
	Quality    int        `json:"quality" binding:"gte=0,lte=100"`
}
