package model

import (
	"errors"
	"testing"
)

func TestIsWSMSProject(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"CNCWL-2024-01", true},
		{"Tandem line retrofit", true},
		{"M&D upgrade", true},
		{"wsms", true},
		{"cncdwl", true},
		{"Substation maintenance", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsWSMSProject(tt.name); got != tt.want {
			t.Errorf("IsWSMSProject(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDiaryValidateWorkType(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		in      DiaryInput
		wantErr bool
	}{
		{"plain project, no type", "EL-2025-01", DiaryInput{}, false},
		{"plain project, free text type", "Substation retrofit", DiaryInput{WorkType: "점검"}, false},
		{"plain project, free text sub type", "EL-2025-01", DiaryInput{WorkType: "AS", WorkSubType: "x"}, false},
		{"wsms without type", "WSMS-2", DiaryInput{}, false},
		{"wsms type without sub type", "WSMS-2", DiaryInput{WorkType: "신규"}, false},
		{"wsms bad type", "cncwl-7", DiaryInput{WorkType: "repair", WorkSubType: "출장"}, true},
		{"wsms bad sub type", "cncwl-7", DiaryInput{WorkType: "AS", WorkSubType: "x"}, true},
		{"wsms complete", "cncwl-7", DiaryInput{WorkType: "신규", WorkSubType: "외근"}, false},
		{"custom name key", "Tandem rebuild", DiaryInput{WorkType: "점검"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.ValidateWorkType(tt.key)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateWorkType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var merr *Error
				if !errors.As(err, &merr) || merr.Code != CodeInvalidArgument {
					t.Errorf("expected INVALID_ARGUMENT, got %v", err)
				}
			}
		})
	}
}
