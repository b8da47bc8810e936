package certificates

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const pdfDateLayout = "January 2, 2006"

func renderCertificate(cert Certificate, verifyURL string) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(30,
		text.NewCol(12, "Certificate of Completion", props.Text{
			Size:  24,
			Style: fontstyle.Bold,
			Align: align.Center,
			Top:   10,
		}),
	)
	m.AddRow(20,
		text.NewCol(12, cert.CourseTitle, props.Text{
			Size:  18,
			Align: align.Center,
			Top:   5,
		}),
	)
	m.AddRow(12,
		text.NewCol(12, "Awarded on "+cert.CompletionDate.Format(pdfDateLayout), props.Text{
			Size:  12,
			Align: align.Center,
		}),
	)

	m.AddRow(30,
		col.New(4).Add(
			text.New("Grade", props.Text{Style: fontstyle.Bold, Align: align.Center}),
			text.New(string(cert.Grade), props.Text{Top: 6, Size: 16, Align: align.Center}),
		),
		col.New(4).Add(
			text.New("Score", props.Text{Style: fontstyle.Bold, Align: align.Center}),
			text.New(fmt.Sprintf("%d%%", cert.ScorePercent), props.Text{Top: 6, Size: 16, Align: align.Center}),
		),
		col.New(4).Add(
			text.New("Lessons", props.Text{Style: fontstyle.Bold, Align: align.Center}),
			text.New(fmt.Sprintf("%d of %d", cert.CompletedLessons, cert.TotalLessons), props.Text{Top: 6, Size: 16, Align: align.Center}),
		),
	)

	if len(cert.Skills) > 0 {
		m.AddRow(20,
			col.New(12).Add(
				text.New("Skills", props.Text{Style: fontstyle.Bold}),
				text.New(strings.Join(cert.Skills, ", "), props.Text{Top: 5}),
			),
		)
	}
	if cert.DurationMinutes > 0 {
		m.AddRow(10,
			text.NewCol(12, fmt.Sprintf("Course duration: %d hours", (cert.DurationMinutes+30)/60), props.Text{Size: 10}),
		)
	}

	m.AddRow(20,
		col.New(12).Add(
			text.New("Certificate ID: "+cert.CertificateID, props.Text{Size: 9}),
			text.New("Verify at: "+verifyURL, props.Text{Size: 9, Top: 5}),
		),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
