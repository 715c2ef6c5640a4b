package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/medicorex/hms/internal/domain/billing"
	"github.com/medicorex/hms/internal/domain/doctor"
	"github.com/medicorex/hms/internal/domain/patient"
	"github.com/medicorex/hms/internal/domain/scheduling"
	"github.com/medicorex/hms/internal/platform/rules"
)

// seedFile is the YAML fixture format. Records name each other through ref
// since identifiers are only known once they are issued.
type seedFile struct {
	Patients     []seedPatient     `yaml:"patients"`
	Doctors      []seedDoctor      `yaml:"doctors"`
	Appointments []seedAppointment `yaml:"appointments"`
	Bills        []seedBill        `yaml:"bills"`
}

type seedPatient struct {
	Ref            string  `yaml:"ref"`
	Name           string  `yaml:"name"`
	Age            int     `yaml:"age"`
	Gender         string  `yaml:"gender"`
	Phone          string  `yaml:"phone"`
	Email          *string `yaml:"email"`
	BloodGroup     *string `yaml:"blood_group"`
	Address        *string `yaml:"address"`
	MedicalHistory *string `yaml:"medical_history"`
}

type seedDoctor struct {
	Ref             string  `yaml:"ref"`
	Name            string  `yaml:"name"`
	Specialization  string  `yaml:"specialization"`
	Phone           string  `yaml:"phone"`
	Email           string  `yaml:"email"`
	Experience      int     `yaml:"experience"`
	Qualification   string  `yaml:"qualification"`
	ConsultationFee string  `yaml:"consultation_fee"`
	Status          string  `yaml:"status"`
	Address         *string `yaml:"address"`
}

type seedAppointment struct {
	Ref     string  `yaml:"ref"`
	Patient string  `yaml:"patient"`
	Doctor  string  `yaml:"doctor"`
	Date    string  `yaml:"date"`
	Time    string  `yaml:"time"`
	Reason  string  `yaml:"reason"`
	Status  string  `yaml:"status"`
	Notes   *string `yaml:"notes"`
}

type seedItem struct {
	Description string `yaml:"description"`
	Amount      string `yaml:"amount"`
}

type seedBill struct {
	Patient       string     `yaml:"patient"`
	Appointment   string     `yaml:"appointment"`
	Items         []seedItem `yaml:"items"`
	Subtotal      string     `yaml:"subtotal"`
	Discount      string     `yaml:"discount"`
	Tax           string     `yaml:"tax"`
	TaxRate       string     `yaml:"tax_rate"`
	Status        string     `yaml:"status"`
	PaymentMethod string     `yaml:"payment_method"`
	Notes         *string    `yaml:"notes"`
	BillDate      string     `yaml:"bill_date"`
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func optionalDecimal(field, v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a decimal", field, v)
	}
	return &d, nil
}

func (b seedBill) draft(patientID string, appointmentID *string) (*billing.Draft, error) {
	d := &billing.Draft{PatientID: patientID, AppointmentID: appointmentID, Notes: b.Notes,
		Status: rules.BillStatus(b.Status)}
	for i, it := range b.Items {
		amt, err := decimal.NewFromString(it.Amount)
		if err != nil {
			return nil, fmt.Errorf("items[%d].amount: %q is not a decimal", i, it.Amount)
		}
		d.Items = append(d.Items, billing.ItemDraft{Description: it.Description, Amount: amt})
	}
	var err error
	if d.Subtotal, err = optionalDecimal("subtotal", b.Subtotal); err != nil {
		return nil, err
	}
	if d.Discount, err = optionalDecimal("discount", b.Discount); err != nil {
		return nil, err
	}
	if d.Tax, err = optionalDecimal("tax", b.Tax); err != nil {
		return nil, err
	}
	if d.TaxRate, err = optionalDecimal("tax_rate", b.TaxRate); err != nil {
		return nil, err
	}
	if b.PaymentMethod != "" {
		m := billing.PaymentMethod(b.PaymentMethod)
		d.PaymentMethod = &m
	}
	if b.BillDate != "" {
		t, err := time.Parse("2006-01-02", b.BillDate)
		if err != nil {
			return nil, fmt.Errorf("bill_date: expected YYYY-MM-DD, got %q", b.BillDate)
		}
		d.BillDate = &t
	}
	return d, nil
}

// seedResult counts what a seed run created.
type seedResult struct {
	Patients, Doctors, Appointments, Bills int
}

func lookup(refs map[string]string, kind, ref string) (string, error) {
	id, ok := refs[ref]
	if !ok {
		return "", fmt.Errorf("unknown %s ref %q", kind, ref)
	}
	return id, nil
}

// seed creates the records through the domain services so every rule and
// audit entry applies. The whole file runs in one transaction.
func (svcs *services) seed(ctx context.Context, f *seedFile) (seedResult, error) {
	var res seedResult
	err := svcs.tx.InTx(ctx, func(ctx context.Context) error {
		res = seedResult{}
		patients := map[string]string{}
		for i, sp := range f.Patients {
			p, err := svcs.patients.Create(ctx, &patient.Patient{
				Name: sp.Name, Age: sp.Age, Gender: sp.Gender, Phone: sp.Phone, Email: sp.Email,
				BloodGroup: sp.BloodGroup, Address: sp.Address, MedicalHistory: sp.MedicalHistory,
			})
			if err != nil {
				return fmt.Errorf("patients[%d]: %w", i, err)
			}
			if sp.Ref != "" {
				patients[sp.Ref] = p.ID
			}
			res.Patients++
		}

		doctors := map[string]string{}
		for i, sd := range f.Doctors {
			fee, err := optionalDecimal("consultation_fee", sd.ConsultationFee)
			if err != nil {
				return fmt.Errorf("doctors[%d]: %w", i, err)
			}
			d := &doctor.Doctor{
				Name: sd.Name, Specialization: sd.Specialization, Phone: sd.Phone, Email: sd.Email,
				Experience: sd.Experience, Qualification: sd.Qualification,
				Status: rules.DoctorStatus(sd.Status), Address: sd.Address,
			}
			if fee != nil {
				d.ConsultationFee = *fee
			}
			created, err := svcs.doctors.Create(ctx, d)
			if err != nil {
				return fmt.Errorf("doctors[%d]: %w", i, err)
			}
			if sd.Ref != "" {
				doctors[sd.Ref] = created.ID
			}
			res.Doctors++
		}

		appointments := map[string]string{}
		for i, sa := range f.Appointments {
			pid, err := lookup(patients, "patient", sa.Patient)
			if err != nil {
				return fmt.Errorf("appointments[%d]: %w", i, err)
			}
			did, err := lookup(doctors, "doctor", sa.Doctor)
			if err != nil {
				return fmt.Errorf("appointments[%d]: %w", i, err)
			}
			a, err := svcs.scheduling.Book(ctx, &scheduling.Appointment{
				PatientID: pid, DoctorID: did, Date: sa.Date, Time: sa.Time, Reason: sa.Reason, Notes: sa.Notes,
			})
			if err != nil {
				return fmt.Errorf("appointments[%d]: %w", i, err)
			}
			if sa.Status != "" {
				if _, err := svcs.scheduling.Transition(ctx, a.ID, rules.AppointmentStatus(sa.Status)); err != nil {
					return fmt.Errorf("appointments[%d]: %w", i, err)
				}
			}
			if sa.Ref != "" {
				appointments[sa.Ref] = a.ID
			}
			res.Appointments++
		}

		for i, sb := range f.Bills {
			pid, err := lookup(patients, "patient", sb.Patient)
			if err != nil {
				return fmt.Errorf("bills[%d]: %w", i, err)
			}
			var aid *string
			if sb.Appointment != "" {
				id, err := lookup(appointments, "appointment", sb.Appointment)
				if err != nil {
					return fmt.Errorf("bills[%d]: %w", i, err)
				}
				aid = &id
			}
			d, err := sb.draft(pid, aid)
			if err != nil {
				return fmt.Errorf("bills[%d]: %w", i, err)
			}
			if _, err := svcs.billing.Create(ctx, d); err != nil {
				return fmt.Errorf("bills[%d]: %w", i, err)
			}
			res.Bills++
		}
		return nil
	})
	return res, err
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load patients, doctors, appointments and bills from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")

			fh, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer fh.Close()
			f, err := parseSeed(fh)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			ctx := cmd.Context()
			pool, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svcs, err := newServices(cfg, pool, nil, nil, logger)
			if err != nil {
				return err
			}
			res, err := svcs.seed(ctx, f)
			if err != nil {
				return fmt.Errorf("seed failed, nothing was written: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d patient(s), %d doctor(s), %d appointment(s), %d bill(s).\n",
				res.Patients, res.Doctors, res.Appointments, res.Bills)
			return nil
		},
	}
	cmd.Flags().String("file", "seed.yaml", "Path to the seed YAML file")
	return cmd
}
