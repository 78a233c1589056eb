package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// evaluateAsync evaluates an expression that yields a promise and waits for it.
func evaluateAsync(expression string, res any) chromedp.Action {
	return chromedp.Evaluate(expression, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func existsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
}

// performanceScript gathers timings keyed by the metric catalog names.
// Buffered observers pick up entries recorded before the script ran.
const performanceScript = `(async () => {
  const out = {};
  const nav = performance.getEntriesByType('navigation')[0];
  if (nav) {
    out['navigation.domContentLoaded'] = nav.domContentLoadedEventEnd - nav.domContentLoadedEventStart;
    out['navigation.loadComplete'] = nav.loadEventEnd - nav.loadEventStart;
    out['navigation.totalDuration'] = nav.loadEventEnd - nav.startTime;
    out['navigation.dnsLookup'] = nav.domainLookupEnd - nav.domainLookupStart;
    out['navigation.tcpConnection'] = nav.connectEnd - nav.connectStart;
    out['navigation.serverResponse'] = nav.responseEnd - nav.requestStart;
    out['navigation.domInteractive'] = nav.domInteractive - nav.startTime;
    out['navigation.domComplete'] = nav.domComplete - nav.startTime;
  }
  for (const p of performance.getEntriesByType('paint')) {
    if (p.name === 'first-paint') out['paint.firstPaint'] = p.startTime;
    if (p.name === 'first-contentful-paint') out['paint.firstContentfulPaint'] = p.startTime;
  }
  const observe = (type, fn) => new Promise((resolve) => {
    try {
      const po = new PerformanceObserver((list) => fn(list.getEntries()));
      po.observe({ type, buffered: true });
      setTimeout(() => { po.disconnect(); resolve(); }, 100);
    } catch (e) {
      resolve();
    }
  });
  let cls = 0;
  let sawShift = false;
  await Promise.all([
    observe('largest-contentful-paint', (entries) => {
      const last = entries[entries.length - 1];
      if (last) out['webVitals.lcp'] = last.renderTime || last.loadTime || last.startTime;
    }),
    observe('layout-shift', (entries) => {
      for (const e of entries) {
        sawShift = true;
        if (!e.hadRecentInput) cls += e.value;
      }
    }),
    observe('first-input', (entries) => {
      const first = entries[0];
      if (first) out['webVitals.fid'] = first.processingStart - first.startTime;
    }),
  ]);
  if (sawShift || 'LayoutShift' in window) out['webVitals.cls'] = cls;
  const resources = performance.getEntriesByType('resource');
  out['resources.total'] = resources.length;
  out['resources.totalSize'] = resources.reduce((sum, r) => sum + (r.transferSize || 0), 0);
  return out;
})()`

// replacedElements render their own content, so children and ::after cannot
// cover them. markScript hides them and lays an overlay block on top instead.
var replacedElements = []string{"iframe", "img", "canvas", "video", "embed", "object"}

// maskStyleScript installs the stylesheet that hides masked content behind a
// neutral block showing the mask label.
func maskStyleScript(className, labelAttr string) string {
	replaced := make([]string, len(replacedElements))
	for i, tag := range replacedElements {
		replaced[i] = tag + "." + className
	}
	css := fmt.Sprintf(`.%[1]s { position: relative !important; }
.%[1]s > * { visibility: hidden !important; }
.%[1]s::after { content: attr(%[2]s); position: absolute; inset: 0; display: flex; align-items: center; justify-content: center; background: #e0e0e0; color: #555; font: 12px monospace; visibility: visible; }
%[3]s { visibility: hidden !important; }
.%[1]s-overlay { position: absolute; z-index: 2147483647; display: flex; align-items: center; justify-content: center; background: #e0e0e0; color: #555; font: 12px monospace; pointer-events: none; }`,
		className, labelAttr, strings.Join(replaced, ", "))
	return fmt.Sprintf(`(() => {
  if (document.getElementById(%[1]s)) return true;
  const style = document.createElement('style');
  style.id = %[1]s;
  style.textContent = %[2]s;
  document.head.appendChild(style);
  return true;
})()`, jsString(className+"-style"), jsString(css))
}

func markScript(selector, label, reason, className, labelAttr, reasonAttr, testID string) string {
	tags, _ := json.Marshal(replacedElements)
	return fmt.Sprintf(`(() => {
  const replaced = new Set(%[9]s);
  const nodes = Array.from(document.querySelectorAll(%[1]s));
  nodes.forEach((el, i) => {
    const text = nodes.length > 1 ? %[4]s + ' (' + (i + 1) + ')' : %[4]s;
    el.classList.add(%[2]s);
    el.setAttribute(%[3]s, text);
    el.setAttribute(%[5]s, %[6]s);
    el.setAttribute('data-testid', %[7]s);
    if (replaced.has(el.tagName.toLowerCase())) {
      const rect = el.getBoundingClientRect();
      const overlay = document.createElement('div');
      overlay.className = %[8]s;
      overlay.textContent = text;
      overlay.style.left = (rect.left + window.scrollX) + 'px';
      overlay.style.top = (rect.top + window.scrollY) + 'px';
      overlay.style.width = rect.width + 'px';
      overlay.style.height = rect.height + 'px';
      document.body.appendChild(overlay);
    }
  });
  return nodes.length;
})()`,
		jsString(selector), jsString(className), jsString(labelAttr), jsString(label),
		jsString(reasonAttr), jsString(reason), jsString(testID), jsString(className+"-overlay"), tags)
}

func manifestScript(name, manifest string) string {
	return fmt.Sprintf(`(() => {
  let meta = document.querySelector('meta[name=' + JSON.stringify(%[1]s) + ']');
  if (!meta) {
    meta = document.createElement('meta');
    meta.setAttribute('name', %[1]s);
    document.head.appendChild(meta);
  }
  meta.setAttribute('content', %[2]s);
  return true;
})()`, jsString(name), jsString(manifest))
}

func maskedElementsScript(className, labelAttr, reasonAttr string) string {
	return fmt.Sprintf(`Array.from(document.getElementsByClassName(%s)).map((el) => ({
  label: el.getAttribute(%s) || '',
  reason: el.getAttribute(%s) || '',
}))`, jsString(className), jsString(labelAttr), jsString(reasonAttr))
}

func clearScript(className, labelAttr, reasonAttr, manifestName string) string {
	return fmt.Sprintf(`(() => {
  for (const el of Array.from(document.getElementsByClassName(%[1]s))) {
    el.classList.remove(%[1]s);
    el.removeAttribute(%[2]s);
    el.removeAttribute(%[3]s);
    el.removeAttribute('data-testid');
  }
  for (const overlay of Array.from(document.getElementsByClassName(%[6]s))) overlay.remove();
  const style = document.getElementById(%[4]s);
  if (style) style.remove();
  const meta = document.querySelector('meta[name=' + JSON.stringify(%[5]s) + ']');
  if (meta) meta.remove();
  return true;
})()`, jsString(className), jsString(labelAttr), jsString(reasonAttr), jsString(className+"-style"), jsString(manifestName), jsString(className+"-overlay"))
}

// probeScript fetches url from the page so cookies and origin match what the
// dashboard itself sees.
func probeScript(url string) string {
	return fmt.Sprintf(`(async () => {
  try {
    const res = await fetch(%s, { cache: 'no-store' });
    return { status: res.status, contentType: res.headers.get('content-type') || '', ok: res.ok, error: '' };
  } catch (e) {
    return { status: 0, contentType: '', ok: false, error: String(e) };
  }
})()`, jsString(url))
}

func fetchJSONScript(url string) string {
	return fmt.Sprintf(`(async () => {
  const res = await fetch(%s, { cache: 'no-store' });
  if (!res.ok) throw new Error('HTTP ' + res.status);
  return await res.text();
})()`, jsString(url))
}
