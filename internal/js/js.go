package js

// Scripts are function expressions. Callers pass the arguments separately.

var HREFS string = `
() => Array.from(document.querySelectorAll('a[href]'), a => a.href)
`

// HREFS_WITHIN returns the raw href attributes below the container found by
// kind ("xpath" or "css") and value, or null when there is no container.
var HREFS_WITHIN string = `
(kind, value) => {
    var container = null;
    if (kind === "xpath") {
        container = document.evaluate(value, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
    } else {
        container = document.querySelector(value);
    }
    if (!container) return null;

    return Array.prototype.slice.call(container.querySelectorAll('a[href]'))
        .map(a => a.getAttribute('href'))
        .filter(h => h !== null && h !== "");
}
`

var EVAL_CLICK string = `
(selector) => {
    var element = document.querySelector(selector);
    if (!element) return false;
    element.scrollIntoView({block: "center"});
    element.click();
    return true;
}
`

// SELECT_VALUE picks the option with the given value on the select element
// found by kind and value, firing the events a user selection would.
var SELECT_VALUE string = `
(kind, value, option) => {
    var element = null;
    if (kind === "xpath") {
        element = document.evaluate(value, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
    } else {
        element = document.querySelector(value);
    }
    if (!element || !element.options) return false;
    if (!Array.prototype.some.call(element.options, o => o.value === option)) return false;

    element.value = option;
    element.dispatchEvent(new Event("input", {bubbles: true}));
    element.dispatchEvent(new Event("change", {bubbles: true}));
    return true;
}
`
