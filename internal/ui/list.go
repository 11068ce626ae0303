package ui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/juju/errors"

	"camera-viewer-go/internal/camera"
	"camera-viewer-go/internal/nav"
	"camera-viewer-go/internal/registry"
)

// listScreen is the registry management screen: the add/edit form, one row
// per camera with selection and actions, and the multi-view launcher.
type listScreen struct {
	app *App

	host, port, name, user, pass, path *widget.Entry
	submitBtn, cancelBtn               *widget.Button
	formTitle                          *widget.Label

	// editing is the key of the record loaded into the form, "" when adding.
	editing string

	records       []camera.Record
	rows          *fyne.Container
	selectedLabel *widget.Label
	content       fyne.CanvasObject
}

func newListScreen(a *App) *listScreen {
	l := &listScreen{
		app:           a,
		host:          widget.NewEntry(),
		port:          widget.NewEntry(),
		name:          widget.NewEntry(),
		user:          widget.NewEntry(),
		pass:          widget.NewPasswordEntry(),
		path:          widget.NewEntry(),
		formTitle:     widget.NewLabelWithStyle("Add Camera", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		rows:          container.NewVBox(),
		selectedLabel: widget.NewLabel(""),
	}
	l.host.SetPlaceHolder("192.168.1.10 or cam.example.com")
	l.port.SetPlaceHolder("554")
	l.name.SetPlaceHolder("Front Door")
	l.path.SetPlaceHolder(a.cfg.StreamPath)

	l.submitBtn = widget.NewButton("Add Camera", l.onSubmit)
	l.submitBtn.Importance = widget.HighImportance
	l.cancelBtn = widget.NewButton("Cancel", l.cancelEdit)
	l.cancelBtn.Hide()

	form := widget.NewForm(
		widget.NewFormItem("Host", l.host),
		widget.NewFormItem("Port", l.port),
		widget.NewFormItem("Device Name", l.name),
		widget.NewFormItem("Username", l.user),
		widget.NewFormItem("Password", l.pass),
		widget.NewFormItem("Stream Path", l.path),
	)

	viewSelected := widget.NewButton("View Selected", l.viewSelected)
	top := container.NewVBox(l.formTitle, form, container.NewHBox(l.submitBtn, l.cancelBtn), widget.NewSeparator())
	bottom := container.NewBorder(nil, nil, l.selectedLabel, viewSelected)

	l.content = container.NewBorder(top, bottom, nil, nil, container.NewVScroll(l.rows))
	return l
}

// reload replaces the rows with the persisted list.
func (l *listScreen) reload() {
	l.apply(l.app.reg.Load(context.Background()))
}

// apply shows records and drops selections that no longer exist.
func (l *listScreen) apply(records []camera.Record) {
	l.records = records
	l.app.selection.Sync(records)
	l.rebuildRows()
}

func (l *listScreen) rebuildRows() {
	l.rows.RemoveAll()
	if len(l.records) == 0 {
		l.rows.Add(widget.NewLabel("No cameras yet. Add one above."))
	}
	for _, rec := range l.records {
		l.rows.Add(l.row(rec))
	}
	l.rows.Refresh()
	l.updateSelectedLabel()
}

func (l *listScreen) row(rec camera.Record) fyne.CanvasObject {
	key := rec.DeviceName

	check := widget.NewCheck("", nil)
	check.Checked = l.app.selection.Contains(key)
	check.OnChanged = func(bool) { l.toggle(key) }

	label := widget.NewLabel(fmt.Sprintf("%s (%s)", rec.DeviceName, rec.Endpoint()))
	actions := container.NewHBox(
		widget.NewButton("View", func() { l.viewCamera(key) }),
		widget.NewButton("Edit", func() { l.startEdit(key) }),
		widget.NewButton("Probe", func() { l.probeCamera(key) }),
		widget.NewButton("Delete", func() { l.confirmDelete(key) }),
	)
	return container.NewBorder(nil, nil, check, actions, label)
}

func (l *listScreen) updateSelectedLabel() {
	l.selectedLabel.SetText(fmt.Sprintf("Selected: %d", l.app.selection.Len()))
}

// formRecord reads the form. Port text that is not a valid port blocks
// submission instead of being stored as 0.
func (l *listScreen) formRecord() (camera.Record, error) {
	port, err := camera.ParsePort(l.port.Text)
	if err != nil {
		return camera.Record{}, err
	}
	rec := camera.Record{
		Host:       l.host.Text,
		Port:       port,
		DeviceName: l.name.Text,
		Username:   l.user.Text,
		Password:   l.pass.Text,
		Path:       l.path.Text,
	}.Normalized()
	return rec, rec.Validate()
}

// submit adds the form record, or replaces the edited one in place.
func (l *listScreen) submit() error {
	rec, err := l.formRecord()
	if err != nil {
		dialog.ShowError(userError(err), l.app.window)
		return err
	}

	ctx := context.Background()
	var records []camera.Record
	if l.editing != "" {
		records, err = l.app.reg.Update(ctx, l.editing, rec)
	} else {
		records, err = l.app.reg.Add(ctx, rec)
	}
	if err != nil {
		l.showSaveError(err)
		return err
	}

	if l.editing != "" {
		l.app.selection.Rename(l.editing, rec)
	}
	l.clearForm()
	l.apply(records)
	return nil
}

// onSubmit handles the submit button. submit has already shown any failure
// in a dialog, so the error is only logged.
func (l *listScreen) onSubmit() {
	if err := l.submit(); err != nil {
		l.app.log.Debug().Str("component", "ui").Str("camera", l.name.Text).Err(err).Msg("camera not saved")
	}
}

// retrySave answers the save failure dialog.
func (l *listScreen) retrySave(retry bool) {
	if retry {
		l.onSubmit()
	}
}

// showSaveError keeps the form as typed. Storage failures offer a retry.
func (l *listScreen) showSaveError(err error) {
	if registry.IsRetryable(err) {
		dialog.ShowConfirm("Save failed",
			"The camera list could not be saved. Your changes are still in the form.\nRetry now?",
			l.retrySave, l.app.window)
		return
	}
	dialog.ShowError(userError(err), l.app.window)
}

// userError turns registry errors into messages for dialogs.
func userError(err error) error {
	switch {
	case errors.Is(err, errors.NotValid):
		return errors.Errorf("Please check the form: %s", errors.Cause(err))
	case errors.Is(err, errors.AlreadyExists):
		return errors.New("A camera with this device name already exists.")
	case errors.Is(err, errors.NotFound):
		return errors.New("That camera no longer exists.")
	}
	return err
}

// startEdit loads the record keyed by key into the form.
func (l *listScreen) startEdit(key string) {
	idx := camera.IndexOf(l.records, key)
	if idx < 0 {
		return
	}
	rec := l.records[idx]
	l.editing = key
	l.host.SetText(rec.Host)
	l.port.SetText(fmt.Sprint(rec.Port))
	l.name.SetText(rec.DeviceName)
	l.user.SetText(rec.Username)
	l.pass.SetText(rec.Password)
	l.path.SetText(rec.Path)

	l.formTitle.SetText("Edit Camera: " + key)
	l.submitBtn.SetText("Update Camera")
	l.cancelBtn.Show()
}

func (l *listScreen) cancelEdit() {
	l.clearForm()
}

func (l *listScreen) clearForm() {
	l.editing = ""
	for _, e := range []*widget.Entry{l.host, l.port, l.name, l.user, l.pass, l.path} {
		e.SetText("")
	}
	l.formTitle.SetText("Add Camera")
	l.submitBtn.SetText("Add Camera")
	l.cancelBtn.Hide()
}

func (l *listScreen) confirmDelete(key string) {
	dialog.ShowConfirm("Delete Camera",
		fmt.Sprintf("Delete %q? This cannot be undone.", key),
		func(ok bool) {
			if ok {
				l.deleteCamera(key)
			}
		}, l.app.window)
}

func (l *listScreen) deleteCamera(key string) error {
	records, err := l.app.reg.Delete(context.Background(), key)
	if err != nil {
		l.showSaveError(err)
		return err
	}
	if l.editing == key {
		l.clearForm()
	}
	l.apply(records)
	return nil
}

func (l *listScreen) toggle(key string) {
	idx := camera.IndexOf(l.records, key)
	if idx < 0 {
		return
	}
	l.app.selection.Toggle(l.records[idx])
	l.updateSelectedLabel()
}

func (l *listScreen) viewCamera(key string) {
	idx := camera.IndexOf(l.records, key)
	if idx < 0 {
		return
	}
	l.app.router.Push(nav.CameraRoute{Camera: l.records[idx]})
}

// viewSelected opens the multi view with a snapshot of the selection.
func (l *listScreen) viewSelected() {
	l.app.router.Push(nav.SelectionRoute{Session: l.app.selection.Build()})
}

// probeCamera runs an RTSP DESCRIBE in the background and reports the result.
func (l *listScreen) probeCamera(key string) {
	idx := camera.IndexOf(l.records, key)
	if idx < 0 {
		return
	}
	rec := l.records[idx]
	uri := camera.StreamURI(rec, l.app.cfg.URIOptions())

	go func() {
		res, err := l.app.prober(context.Background(), uri, l.app.cfg.ProbeTimeout())
		if err != nil {
			l.app.log.Warn().Str("component", "ui").Str("camera", key).Err(err).Msg("probe failed")
			dialog.ShowError(errors.Errorf("%s did not answer: %v", key, err), l.app.window)
			return
		}
		dialog.ShowInformation("Probe: "+key,
			fmt.Sprintf("%s answered in %s\n%s", rec.Endpoint(), res.Elapsed.Round(time.Millisecond), res.Summary()),
			l.app.window)
	}()
}
